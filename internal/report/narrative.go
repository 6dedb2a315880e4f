// Package report turns finished assessments into clinician-facing artifacts:
// the AI narrative and the spreadsheet export.
package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fonotools/avalia/internal/ai"
	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/platform/cache"
	"github.com/fonotools/avalia/internal/protocol"
)

// Theory grounding handed to the model as the system instruction, extracted
// from the published protocol manuals.
const matrixTheoryContext = `CONHECIMENTO TEÓRICO (MATRIZ DE COMUNICAÇÃO - Charity Rowland):
1. OBJETIVO: Avaliar habilidades comunicativas em pessoas com deficiências, desde estadios iniciais até linguagem.
2. 4 RAZÕES PARA COMUNICAR (Intenções):
   - REJEITAR: Expressar desconforto, protestar, rejeitar algo.
   - OBTER: Obter conforto, continuar ação, obter objeto, escolher.
   - SOCIAL: Interesse, chamar atenção, cumprimentar, afeto.
   - INFORMAÇÃO: Responder, perguntar, nomear, comentar.
3. 7 NÍVEIS DE COMPETÊNCIA:
   - Nível I (Pré-intencional): Reage a sensações, sem controle intencional. Pais interpretam.
   - Nível II (Intencional): Comportamento intencional, mas não comunicativo (ex: chora para si mesmo, não para o outro).
   - Nível III (Comunicação Não-Convencional): Gritos, gestos simples, puxar pessoas. Intencional pré-simbólico.
   - Nível IV (Comunicação Convencional): Apontar, acenar, gestos socialmente aceitos. Pré-simbólico.
   - Nível V (Símbolos Concretos): Objetos reais, fotos, gestos icônicos (ex: bater na cadeira para sentar).
   - Nível VI (Símbolos Abstratos): Fala isolada, sinais (Libras), Braille, palavras escritas. Um a um.
   - Nível VII (Linguagem): Combinação de 2 ou mais símbolos com regras gramaticais.
4. INTERPRETAÇÃO:
   - Emergente: Faz inconsistentemente ou com ajuda.
   - Dominado: Faz independentemente em vários contextos.`

const procTheoryContext = `CONHECIMENTO TEÓRICO (PROC - Jaime Zorzi e Simone Hage, 2004):
1. ESTRUTURA: Avalia desenvolvimento comunicativo e cognitivo infantil. Pontuação Máxima Total: 200.
2. ASPECTOS OBSERVADOS:
   A. HABILIDADES COMUNICATIVAS (Máx 70):
      - Dialógicas: Intenção, iniciação, troca de turnos.
      - Funções Comunicativas: Instrumental, Protesto, Interativa, Nomeação, Informativa, Heurística, Narrativa.
      - Meios: Não verbais (gestos/vocalizações) e Verbais (palavras a frases).
      - Contextualização: Linguagem imediata vs. não imediata (eventos passados/futuros).
   B. COMPREENSÃO VERBAL (Máx 60): De não resposta até ordens complexas (3+ ações).
   C. DESENVOLVIMENTO COGNITIVO (Máx 70):
      - Manipulação de objetos.
      - Simbolismo (faz-de-conta).
      - Organização do brinquedo.
      - Imitação (gestual e sonora).`

const narrativeCacheTTL = 24 * time.Hour

// NarrativeGenerator produces the clinical analysis text for a finished
// assessment. The cache is optional; when present, identical score sheets
// reuse the generated text instead of paying for another completion.
type NarrativeGenerator struct {
	router *ai.Router
	cache  *cache.Cache
}

// NewNarrativeGenerator wires the AI router and an optional cache (nil to
// disable caching).
func NewNarrativeGenerator(router *ai.Router, c *cache.Cache) *NarrativeGenerator {
	return &NarrativeGenerator{router: router, cache: c}
}

// Generate builds the prompt from the record's scores and demographics and
// asks the configured providers for a narrative. The caller keeps the
// record's previous text on error.
func (g *NarrativeGenerator) Generate(ctx context.Context, catalog *protocol.Catalog, record *assessment.AssessmentRecord) (string, error) {
	if record == nil {
		return "", fmt.Errorf("no record to analyze")
	}
	if !g.router.HasProvider() {
		return "", fmt.Errorf("no AI provider configured")
	}

	system, prompt := buildPrompt(catalog, record)
	key := cacheKey(system, prompt)

	if g.cache != nil {
		if cached, ok := g.cache.GetString(ctx, key); ok {
			slog.Debug("narrative served from cache", "record", record.ID)
			return cached, nil
		}
	}

	resp, err := g.router.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("generating narrative: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("provider returned an empty narrative")
	}

	if g.cache != nil {
		if err := g.cache.SetString(ctx, key, text, narrativeCacheTTL); err != nil {
			slog.Warn("caching narrative failed", "error", err)
		}
	}
	return text, nil
}

func cacheKey(system, prompt string) string {
	sum := sha256.Sum256([]byte(system + "\x00" + prompt))
	return "narrative:" + hex.EncodeToString(sum[:])
}

func buildPrompt(catalog *protocol.Catalog, record *assessment.AssessmentRecord) (system, prompt string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Paciente: %s, %s anos. Diagnóstico: %s.\n",
		record.UserData.Name, record.UserData.Age, record.UserData.Diagnosis)
	if record.UserData.ConsultationReason != "" {
		fmt.Fprintf(&b, "Motivo da consulta: %s.\n", record.UserData.ConsultationReason)
	}
	if record.UserData.Observations != "" {
		fmt.Fprintf(&b, "Observações do avaliador: %s.\n", record.UserData.Observations)
	}
	b.WriteString("\n")

	if record.Type == assessment.TypeProc {
		system = procTheoryContext
		s := assessment.ComputeProcScores(record.ProcAnswers)
		fmt.Fprintf(&b, "RESULTADOS PROC:\n")
		fmt.Fprintf(&b, "1a Habilidades dialógicas: %d/%d\n", s.Score1A, assessment.ProcMax1A)
		fmt.Fprintf(&b, "1b Funções comunicativas: %d/%d\n", s.Score1B, assessment.ProcMax1B)
		fmt.Fprintf(&b, "1c Meios de comunicação: %d/%d (vocal %d, gestos %d, verbal %d)\n",
			s.Score1C, assessment.ProcMax1C, s.Vocal, s.Gestos, s.Verbal)
		fmt.Fprintf(&b, "1d Contextualização: %d/%d\n", s.Score1D, assessment.ProcMax1D)
		fmt.Fprintf(&b, "Parte 1 (habilidades comunicativas): %d/%d\n", s.Total1, assessment.ProcMaxPart1)
		fmt.Fprintf(&b, "Parte 2 (compreensão verbal): %d/%d\n", s.Score2, assessment.ProcMax2)
		fmt.Fprintf(&b, "3a Manipulação: %d/%d, 3b Simbolismo: %d/%d, 3c Organização: %d/%d, 3d Imitação: %d/%d\n",
			s.Score3A, assessment.ProcMax3A, s.Score3B, assessment.ProcMax3B,
			s.Score3C, assessment.ProcMax3C, s.Score3D, assessment.ProcMax3D)
		fmt.Fprintf(&b, "Parte 3 (desenvolvimento cognitivo): %d/%d\n", s.Total3, assessment.ProcMaxPart3)
		fmt.Fprintf(&b, "TOTAL: %d/%d\n", s.GrandTotal, assessment.ProcMaxTotal)
		for _, section := range catalog.Checklist() {
			var marked []string
			for _, item := range section.Items {
				if record.ProcChecklist[item.ID] {
					marked = append(marked, item.Text)
				}
			}
			if len(marked) > 0 {
				fmt.Fprintf(&b, "%s: %s\n", section.Title, strings.Join(marked, "; "))
			}
		}
	} else {
		system = matrixTheoryContext
		stats := assessment.ComputeMatrixStats(catalog, record.Answers)
		fmt.Fprintf(&b, "RESULTADOS MATRIZ DE COMUNICAÇÃO:\n")
		fmt.Fprintf(&b, "Células dominadas: %d/%d\n", stats.TotalMastered, stats.TotalSlots)
		for _, cat := range protocol.MatrixCategories {
			cnt := stats.ByCategory[cat]
			fmt.Fprintf(&b, "Categoria %s: %d/%d\n", cat, cnt.Mastered, cnt.Total)
		}
		for level := protocol.MinLevel; level <= protocol.MaxLevel; level++ {
			cnt := stats.ByLevel[level]
			fmt.Fprintf(&b, "Nível %d: %d/%d\n", level, cnt.Mastered, cnt.Total)
		}
		fmt.Fprintf(&b, "Média: %s, Desvio padrão: %s, Mediana: %.2f\n", stats.Mean, stats.StdDev, stats.Median)
	}

	b.WriteString("\nCom base no conhecimento teórico e nos resultados acima, redija uma análise clínica em português, em prosa, para compor o laudo fonoaudiológico. Descreva o perfil comunicativo da criança, pontos fortes, áreas de atenção e sugestões de intervenção. Não use formatação markdown.")
	return system, b.String()
}
