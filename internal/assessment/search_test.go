package assessment

import (
	"testing"
	"time"
)

func TestSearchRecords(t *testing.T) {
	jose := NewRecord(TypeMatrix, time.Now())
	jose.UserData.Name = "José Antônio"
	jose.UserData.Diagnosis = "Atraso de linguagem"

	maria := NewRecord(TypeProc, time.Now())
	maria.UserData.Name = "Maria"
	maria.UserData.SpeechTherapist = "Dra. Conceição"

	records := []*AssessmentRecord{jose, maria}

	tests := []struct {
		name  string
		query string
		want  []*AssessmentRecord
	}{
		{"empty query returns all", "", records},
		{"accentless matches accented name", "jose antonio", []*AssessmentRecord{jose}},
		{"accented matches accentless query target", "conceicao", []*AssessmentRecord{maria}},
		{"diagnosis matches", "LINGUAGEM", []*AssessmentRecord{jose}},
		{"no match", "pedro", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchRecords(records, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("SearchRecords(%q) = %d records, want %d", tt.query, len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i].ID {
					t.Errorf("result %d = %s, want %s", i, got[i].ID, tt.want[i].ID)
				}
			}
		})
	}
}
