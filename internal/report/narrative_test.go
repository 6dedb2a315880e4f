package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fonotools/avalia/internal/ai"
	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/protocol"
)

func loadCatalog(t *testing.T) *protocol.Catalog {
	t.Helper()
	c, err := protocol.Load()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	return c
}

func matrixRecord() *assessment.AssessmentRecord {
	r := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	r.UserData.Name = "Ana"
	r.UserData.Age = "4"
	r.UserData.Diagnosis = "TEA"
	r.Answers["A1_1"] = assessment.StatusMastered
	r.Answers["C1_3"] = assessment.StatusEmergent
	return r
}

func TestGenerateMatrixNarrative(t *testing.T) {
	c := loadCatalog(t)
	mock := ai.NewMockProvider("A criança apresenta perfil pré-simbólico.")
	router := ai.NewRouter()
	router.Register("mock", mock)

	gen := NewNarrativeGenerator(router, nil)
	text, err := gen.Generate(context.Background(), c, matrixRecord())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "A criança apresenta perfil pré-simbólico." {
		t.Errorf("text = %q", text)
	}

	req := mock.LastRequest
	if req == nil {
		t.Fatal("provider never called")
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system+user", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "Charity Rowland") {
		t.Error("system message lacks the Matrix theory context")
	}
	user := req.Messages[1].Content
	for _, want := range []string{"Ana", "TEA", "Células dominadas: 1/76", "REJEITAR"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateProcNarrative(t *testing.T) {
	c := loadCatalog(t)
	r := assessment.NewRecord(assessment.TypeProc, time.Now())
	r.UserData.Name = "Bruno"
	r.UserData.Age = "3"
	r.UserData.Diagnosis = "atraso de linguagem"
	r.ProcAnswers["1a_1"] = 4
	r.ProcAnswers["2_1"] = 30
	r.ProcChecklist["gc_2"] = true

	mock := ai.NewMockProvider("ok")
	router := ai.NewRouter()
	router.Register("mock", mock)

	if _, err := NewNarrativeGenerator(router, nil).Generate(context.Background(), c, r); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(mock.LastRequest.Messages[0].Content, "Zorzi") {
		t.Error("system message lacks the PROC theory context")
	}
	user := mock.LastRequest.Messages[1].Content
	for _, want := range []string{"TOTAL: 34/200", "compreensão verbal): 30/60", "Comunicação intencional primária"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerateErrorLeavesCallerInCharge(t *testing.T) {
	c := loadCatalog(t)
	router := ai.NewRouter()
	router.Register("down", &ai.MockProvider{Err: errors.New("quota")})

	_, err := NewNarrativeGenerator(router, nil).Generate(context.Background(), c, matrixRecord())
	if err == nil {
		t.Fatal("Generate should fail when every provider fails")
	}
}

func TestGenerateRequiresProvider(t *testing.T) {
	c := loadCatalog(t)
	_, err := NewNarrativeGenerator(ai.NewRouter(), nil).Generate(context.Background(), c, matrixRecord())
	if err == nil {
		t.Fatal("Generate should fail with no providers configured")
	}
}
