package assessment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fonotools/avalia/internal/protocol"
)

// ErrTypeMismatch is returned when a comparison mixes protocol types.
var ErrTypeMismatch = errors.New("records are of different assessment types")

// PatientGroup collects the records of one patient, newest first.
type PatientGroup struct {
	Key     string              `json:"key"`
	Name    string              `json:"name"`
	Records []*AssessmentRecord `json:"records"`
}

// GroupKey identifies the patient a record belongs to. Records created before
// patient IDs existed fall back to the trimmed name and age pair.
func GroupKey(r *AssessmentRecord) string {
	if r.PatientID != "" {
		return r.PatientID
	}
	return strings.TrimSpace(r.UserData.Name) + "_" + strings.TrimSpace(r.UserData.Age)
}

// GroupByPatient buckets records per patient. Groups are ordered by their most
// recent record, records within a group newest first.
func GroupByPatient(records []*AssessmentRecord) []PatientGroup {
	byKey := make(map[string]*PatientGroup)
	var order []string
	for _, r := range records {
		key := GroupKey(r)
		g, ok := byKey[key]
		if !ok {
			g = &PatientGroup{Key: key, Name: strings.TrimSpace(r.UserData.Name)}
			byKey[key] = g
			order = append(order, key)
		}
		g.Records = append(g.Records, r)
	}

	out := make([]PatientGroup, 0, len(byKey))
	for _, key := range order {
		g := byKey[key]
		sort.Slice(g.Records, func(i, j int) bool {
			return g.Records[i].LastModified.After(g.Records[j].LastModified)
		})
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Records[0].LastModified.After(out[j].Records[0].LastModified)
	})
	return out
}

// ComparisonSide is one record's contribution to a comparison.
type ComparisonSide struct {
	RecordID string `json:"recordId"`
	Date     string `json:"date"`
	Score    int    `json:"score"`
}

// Comparison is the evolution between two assessments of the same patient:
// mastered-cell counts for Matrix, raw point totals for PROC.
type Comparison struct {
	Type  Type           `json:"type"`
	Older ComparisonSide `json:"older"`
	Newer ComparisonSide `json:"newer"`
	Delta int            `json:"delta"`
}

// Compare scores two records of the same type against each other. The records
// are ordered by modification time; Delta is newer minus older.
func Compare(c *protocol.Catalog, a, b *AssessmentRecord) (Comparison, error) {
	if a == nil || b == nil {
		return Comparison{}, fmt.Errorf("comparison requires two records")
	}
	if a.Type != b.Type {
		return Comparison{}, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a.Type, b.Type)
	}

	older, newer := a, b
	if older.LastModified.After(newer.LastModified) {
		older, newer = newer, older
	}

	cmp := Comparison{
		Type:  a.Type,
		Older: ComparisonSide{RecordID: older.ID, Date: older.UserData.Date, Score: recordScore(c, older)},
		Newer: ComparisonSide{RecordID: newer.ID, Date: newer.UserData.Date, Score: recordScore(c, newer)},
	}
	cmp.Delta = cmp.Newer.Score - cmp.Older.Score
	return cmp, nil
}

func recordScore(c *protocol.Catalog, r *AssessmentRecord) int {
	if r.Type == TypeProc {
		return ComputeProcScores(r.ProcAnswers).RawTotal()
	}
	return ComputeMatrixStats(c, r.Answers).TotalMastered
}
