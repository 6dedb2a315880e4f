package assessment

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	m := NewRecord(TypeMatrix, now)
	if m.ID != "1788256800000" {
		t.Errorf("ID = %q, want creation-millis 1788256800000", m.ID)
	}
	if m.PatientID == "" {
		t.Error("PatientID should be assigned on creation")
	}
	if m.CurrentSection != "A" {
		t.Errorf("CurrentSection = %q, want A", m.CurrentSection)
	}
	if m.Answers == nil || m.ProcAnswers != nil {
		t.Error("matrix record should carry an answers map only")
	}
	if m.Started() {
		t.Error("fresh record should not count as started")
	}

	p := NewRecord(TypeProc, now)
	if p.ProcAnswers == nil || p.ProcChecklist == nil {
		t.Error("proc record should carry proc maps")
	}
	if p.Answers != nil {
		t.Error("proc record should not carry a matrix answers map")
	}
}

func TestUnmarshalLegacyAnswers(t *testing.T) {
	legacy := []byte(`{
		"id": "123",
		"type": "MATRIX",
		"userData": {"name": "Ana"},
		"answers": {
			"A1": {"1": "mastered"},
			"C1": {"3": "emergent", "4": "mastered"}
		}
	}`)

	var r AssessmentRecord
	if err := json.Unmarshal(legacy, &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := map[string]AnswerStatus{
		"A1_1": StatusMastered,
		"C1_3": StatusEmergent,
		"C1_4": StatusMastered,
	}
	if len(r.Answers) != len(want) {
		t.Fatalf("answers = %v, want %v", r.Answers, want)
	}
	for id, status := range want {
		if r.Answers[id] != status {
			t.Errorf("answers[%s] = %q, want %q", id, r.Answers[id], status)
		}
	}
}

func TestUnmarshalFlatAnswersRoundTrip(t *testing.T) {
	r := NewRecord(TypeMatrix, time.Now())
	r.Answers["B1_2"] = StatusEmergent

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back AssessmentRecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Answers["B1_2"] != StatusEmergent {
		t.Errorf("answers[B1_2] = %q, want emergent", back.Answers["B1_2"])
	}
	if back.PatientID != r.PatientID {
		t.Errorf("PatientID = %q, want %q", back.PatientID, r.PatientID)
	}
}

func TestUserDataFieldAccess(t *testing.T) {
	var u UserData
	if !u.SetField("consultationReason", "atraso de fala") {
		t.Fatal("SetField rejected a known field")
	}
	got, ok := u.Field("consultationReason")
	if !ok || got != "atraso de fala" {
		t.Errorf("Field = %q/%v, want value back", got, ok)
	}
	if u.SetField("nope", "x") {
		t.Error("SetField accepted an unknown field")
	}
	if _, ok := u.Field("nope"); ok {
		t.Error("Field accepted an unknown field")
	}
}
