package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fonotools/avalia/internal/assessment"
)

func TestBuildWorkbookMatrix(t *testing.T) {
	c := loadCatalog(t)
	r := matrixRecord()
	r.ClinicalAnalysis = "Perfil pré-simbólico."

	data, err := BuildWorkbook(c, r)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{sheetIdentification, sheetMatrix} {
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			t.Fatalf("sheet %q missing", sheet)
		}
	}

	name, err := f.GetCellValue(sheetIdentification, "B3")
	if err != nil || name != "Ana" {
		t.Errorf("identification B3 = %q/%v, want Ana", name, err)
	}

	// A1_1 is the first grid row's level-1 cell (column C, "I").
	rows, err := f.GetRows(sheetMatrix)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	foundMastered := false
	for _, row := range rows {
		for _, cell := range row {
			if cell == markMastered {
				foundMastered = true
			}
		}
	}
	if !foundMastered {
		t.Error("no mastered mark rendered in the grid")
	}
}

func TestBuildWorkbookProcFootnote(t *testing.T) {
	c := loadCatalog(t)
	r := assessment.NewRecord(assessment.TypeProc, time.Now())
	r.UserData.Name = "Bruno"
	// Push 1c over its ceiling so the footnote renders.
	r.ProcAnswers["1c_vocal"] = 2
	r.ProcAnswers["1c_gestos"] = 5
	r.ProcAnswers["1c_verbal"] = 15

	data, err := BuildWorkbook(c, r)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetProc)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	foundNote := false
	for _, row := range rows {
		for _, cell := range row {
			if bytes.Contains([]byte(cell), []byte("soma bruta de 1c (22)")) {
				foundNote = true
			}
		}
	}
	if !foundNote {
		t.Error("cap footnote missing from the PROC sheet")
	}
}
