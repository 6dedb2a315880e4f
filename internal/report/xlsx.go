package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/protocol"
)

const (
	sheetIdentification = "Identificação"
	sheetMatrix         = "Matriz"
	sheetProc           = "PROC"
)

// Grid cell markers, matching the printed protocol sheets.
const (
	markMastered = "D" // dominado
	markEmergent = "E" // emergente
)

// BuildWorkbook renders the record as an xlsx workbook: an identification
// sheet plus the protocol grid (Matrix) or the score table (PROC).
func BuildWorkbook(catalog *protocol.Catalog, record *assessment.AssessmentRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("no record to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", sheetIdentification); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	writeIdentification(f, bold, record)

	switch record.Type {
	case assessment.TypeProc:
		if err := writeProcSheet(f, bold, catalog, record); err != nil {
			return nil, err
		}
	default:
		if err := writeMatrixSheet(f, bold, catalog, record); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeIdentification(f *excelize.File, bold int, record *assessment.AssessmentRecord) {
	u := record.UserData
	rows := [][2]string{
		{"Nome", u.Name},
		{"Idade", u.Age},
		{"Gênero", u.Gender},
		{"Mãe", u.MotherName},
		{"Pai", u.FatherName},
		{"Endereço", fmt.Sprintf("%s, %s - %s, CEP %s", u.Street, u.Number, u.Neighborhood, u.Zip)},
		{"Telefone", u.Phone},
		{"Email", u.Email},
		{"Data", u.Date},
		{"Hora", u.Time},
		{"Diagnóstico", u.Diagnosis},
		{"Motivo da consulta", u.ConsultationReason},
		{"Fonoaudiólogo(a)", u.SpeechTherapist},
		{"Observações", u.Observations},
	}

	f.SetCellValue(sheetIdentification, "A1", "Identificação do paciente")
	f.SetCellStyle(sheetIdentification, "A1", "A1", bold)
	for i, row := range rows {
		f.SetCellValue(sheetIdentification, fmt.Sprintf("A%d", i+3), row[0])
		f.SetCellValue(sheetIdentification, fmt.Sprintf("B%d", i+3), row[1])
	}
	f.SetColWidth(sheetIdentification, "A", "A", 22)
	f.SetColWidth(sheetIdentification, "B", "B", 50)

	if record.ClinicalAnalysis != "" {
		base := len(rows) + 4
		f.SetCellValue(sheetIdentification, fmt.Sprintf("A%d", base), "Análise clínica")
		f.SetCellStyle(sheetIdentification, fmt.Sprintf("A%d", base), fmt.Sprintf("A%d", base), bold)
		f.SetCellValue(sheetIdentification, fmt.Sprintf("A%d", base+1), record.ClinicalAnalysis)
	}
}

func writeMatrixSheet(f *excelize.File, bold int, catalog *protocol.Catalog, record *assessment.AssessmentRecord) error {
	if _, err := f.NewSheet(sheetMatrix); err != nil {
		return fmt.Errorf("create matrix sheet: %w", err)
	}

	headers := []string{"Categoria", "Habilidade", "I", "II", "III", "IV", "V", "VI", "VII"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetMatrix, cell, h)
		f.SetCellStyle(sheetMatrix, cell, cell, bold)
	}

	rowNum := 2
	for _, row := range catalog.Rows() {
		q, ok := catalog.Question(row.QuestionID)
		if !ok {
			continue
		}
		f.SetCellValue(sheetMatrix, fmt.Sprintf("A%d", rowNum), row.Category)
		f.SetCellValue(sheetMatrix, fmt.Sprintf("B%d", rowNum), row.Label)
		for _, level := range row.Levels {
			entry, ok := q.EntryForLevel(level)
			if !ok {
				continue
			}
			var mark string
			switch record.Answers[entry.ID] {
			case assessment.StatusMastered:
				mark = markMastered
			case assessment.StatusEmergent:
				mark = markEmergent
			}
			if mark != "" {
				cell, _ := excelize.CoordinatesToCellName(2+level, rowNum)
				f.SetCellValue(sheetMatrix, cell, mark)
			}
		}
		rowNum++
	}

	stats := assessment.ComputeMatrixStats(catalog, record.Answers)
	rowNum++
	f.SetCellValue(sheetMatrix, fmt.Sprintf("A%d", rowNum), "Estatísticas")
	f.SetCellStyle(sheetMatrix, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("A%d", rowNum), bold)
	statRows := [][2]any{
		{"Células dominadas", fmt.Sprintf("%d/%d", stats.TotalMastered, stats.TotalSlots)},
		{"Média", stats.Mean},
		{"Desvio padrão", stats.StdDev},
		{"Mediana", stats.Median},
	}
	for _, cat := range protocol.MatrixCategories {
		cnt := stats.ByCategory[cat]
		statRows = append(statRows, [2]any{cat, fmt.Sprintf("%d/%d", cnt.Mastered, cnt.Total)})
	}
	for i, sr := range statRows {
		f.SetCellValue(sheetMatrix, fmt.Sprintf("A%d", rowNum+1+i), sr[0])
		f.SetCellValue(sheetMatrix, fmt.Sprintf("B%d", rowNum+1+i), sr[1])
	}

	f.SetColWidth(sheetMatrix, "A", "A", 12)
	f.SetColWidth(sheetMatrix, "B", "B", 28)
	return nil
}

func writeProcSheet(f *excelize.File, bold int, catalog *protocol.Catalog, record *assessment.AssessmentRecord) error {
	if _, err := f.NewSheet(sheetProc); err != nil {
		return fmt.Errorf("create proc sheet: %w", err)
	}

	s := assessment.ComputeProcScores(record.ProcAnswers)

	headers := []string{"Bloco", "Pontuação", "Máximo"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetProc, cell, h)
		f.SetCellStyle(sheetProc, cell, cell, bold)
	}

	rows := []struct {
		label string
		score int
		max   int
	}{
		{"1a. Habilidades dialógicas", s.Score1A, assessment.ProcMax1A},
		{"1b. Funções comunicativas", s.Score1B, assessment.ProcMax1B},
		{"1c. Meios de comunicação", s.Score1C, assessment.ProcMax1C},
		{"1d. Contextualização", s.Score1D, assessment.ProcMax1D},
		{"Parte 1 - Habilidades comunicativas", s.Total1, assessment.ProcMaxPart1},
		{"Parte 2 - Compreensão verbal", s.Score2, assessment.ProcMax2},
		{"3a. Manipulação de objetos", s.Score3A, assessment.ProcMax3A},
		{"3b. Simbolismo", s.Score3B, assessment.ProcMax3B},
		{"3c. Organização do brinquedo", s.Score3C, assessment.ProcMax3C},
		{"3d. Imitação", s.Score3D, assessment.ProcMax3D},
		{"Parte 3 - Desenvolvimento cognitivo", s.Total3, assessment.ProcMaxPart3},
		{"TOTAL", s.GrandTotal, assessment.ProcMaxTotal},
	}
	for i, r := range rows {
		f.SetCellValue(sheetProc, fmt.Sprintf("A%d", i+2), r.label)
		f.SetCellValue(sheetProc, fmt.Sprintf("B%d", i+2), r.score)
		f.SetCellValue(sheetProc, fmt.Sprintf("C%d", i+2), r.max)
	}

	next := len(rows) + 3
	if s.Score1CRaw > s.Score1C {
		f.SetCellValue(sheetProc, fmt.Sprintf("A%d", next),
			fmt.Sprintf("Nota: a soma bruta de 1c (%d) excede o teto do bloco e foi limitada a %d.",
				s.Score1CRaw, assessment.ProcMax1C))
		next += 2
	}

	var marked []string
	for _, section := range catalog.Checklist() {
		for _, item := range section.Items {
			if record.ProcChecklist[item.ID] {
				marked = append(marked, item.Text)
			}
		}
	}
	if len(marked) > 0 {
		f.SetCellValue(sheetProc, fmt.Sprintf("A%d", next), "Checklist qualitativo")
		f.SetCellStyle(sheetProc, fmt.Sprintf("A%d", next), fmt.Sprintf("A%d", next), bold)
		for i, text := range marked {
			f.SetCellValue(sheetProc, fmt.Sprintf("A%d", next+1+i), text)
		}
	}

	f.SetColWidth(sheetProc, "A", "A", 40)
	return nil
}
