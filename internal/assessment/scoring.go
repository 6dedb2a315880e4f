package assessment

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/fonotools/avalia/internal/protocol"
)

// procExpectedItems is the nominal item count the progress percentage is
// computed against. The protocol sheet counts sub-items separately, so it is
// larger than the catalog's item count.
const procExpectedItems = 35

// procCompleteThreshold marks a PROC assessment as finished regardless of the
// nominal count.
const procCompleteThreshold = 30

// Progress returns the Matrix completion percentage: answered level entries
// over all answerable cells, rounded to the nearest integer.
func Progress(c *protocol.Catalog, answers map[string]AnswerStatus) int {
	total := c.TotalLevelSlots()
	if total == 0 {
		return 0
	}
	answered := 0
	for _, status := range answers {
		if status == StatusEmergent || status == StatusMastered {
			answered++
		}
	}
	return int(math.Round(100 * float64(answered) / float64(total)))
}

// Count is a mastered/total pair for one grid axis value.
type Count struct {
	Mastered int `json:"mastered"`
	Total    int `json:"total"`
}

// MatrixStats aggregates the reporting grid: mastery per communicative-intent
// category and per competence level, plus descriptive statistics over the
// binary cell vector. Mean and StdDev are pre-formatted to two decimals the
// way the report prints them.
type MatrixStats struct {
	TotalMastered int              `json:"totalMastered"`
	TotalSlots    int              `json:"totalSlots"`
	ByCategory    map[string]Count `json:"byCategory"`
	ByLevel       map[int]Count    `json:"byLevel"`
	Mean          string           `json:"mean"`
	StdDev        string           `json:"stdDev"`
	Median        float64          `json:"median"`
}

// ComputeMatrixStats walks the grid rows and scores each (question, level)
// cell as mastered or not. Unanswered and emergent cells both count as zero;
// emergent shows in the grid rendering, not in the statistics.
func ComputeMatrixStats(c *protocol.Catalog, answers map[string]AnswerStatus) MatrixStats {
	stats := MatrixStats{
		ByCategory: make(map[string]Count, len(protocol.MatrixCategories)),
		ByLevel:    make(map[int]Count),
	}
	for _, cat := range protocol.MatrixCategories {
		stats.ByCategory[cat] = Count{}
	}

	var cells []float64
	for _, row := range c.Rows() {
		q, ok := c.Question(row.QuestionID)
		if !ok {
			continue
		}
		for _, level := range row.Levels {
			entry, ok := q.EntryForLevel(level)
			if !ok {
				continue
			}
			cell := 0.0
			if answers[entry.ID] == StatusMastered {
				cell = 1.0
				stats.TotalMastered++
			}
			cells = append(cells, cell)

			cat := stats.ByCategory[row.Category]
			cat.Total++
			cat.Mastered += int(cell)
			stats.ByCategory[row.Category] = cat

			lvl := stats.ByLevel[level]
			lvl.Total++
			lvl.Mastered += int(cell)
			stats.ByLevel[level] = lvl
		}
	}
	stats.TotalSlots = len(cells)

	mean, stddev := meanStdDev(cells)
	stats.Mean = formatStat(mean)
	stats.StdDev = formatStat(stddev)
	stats.Median = median(cells)
	return stats
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ProcProgress returns the PROC completion percentage. Thirty or more answered
// items count as complete; below that the percentage runs against the nominal
// item count of the protocol sheet.
func ProcProgress(answers map[string]int) int {
	n := len(answers)
	switch {
	case n == 0:
		return 0
	case n >= procCompleteThreshold:
		return 100
	default:
		return int(math.Round(100 * float64(n) / float64(procExpectedItems)))
	}
}

// Maximum attainable points per PROC block, fixed by the protocol.
const (
	ProcMax1A    = 20
	ProcMax1B    = 15
	ProcMax1C    = 20
	ProcMax1D    = 15
	ProcMaxPart1 = 70
	ProcMax2     = 60
	ProcMax3A    = 10
	ProcMax3B    = 20
	ProcMax3C    = 20
	ProcMax3D    = 20
	ProcMaxPart3 = 70
	ProcMaxTotal = 200
)

// ProcScore is the full PROC score sheet. Score1C is capped at the block
// ceiling; Score1CRaw keeps the uncapped sum for the report footnote.
type ProcScore struct {
	Score1A    int `json:"score1a"`
	Score1B    int `json:"score1b"`
	Score1CRaw int `json:"score1cRaw"`
	Score1C    int `json:"score1c"`
	Score1D    int `json:"score1d"`
	Total1     int `json:"total1"`
	Score2     int `json:"score2"`
	Score3A    int `json:"score3a"`
	Score3B    int `json:"score3b"`
	Score3C    int `json:"score3c"`
	Score3D    int `json:"score3d"`
	Total3     int `json:"total3"`
	GrandTotal int `json:"grandTotal"`

	// Communication-means detail behind 1c.
	Vocal  int `json:"vocal"`
	Gestos int `json:"gestos"`
	Verbal int `json:"verbal"`
}

// ComputeProcScores sums the answered option values into the score sheet.
// Missing items contribute zero; an empty map yields an all-zero sheet.
func ComputeProcScores(answers map[string]int) ProcScore {
	var s ProcScore
	s.Score1A = sumPrefix(answers, "1a_")
	s.Score1B = sumPrefix(answers, "1b_")

	s.Vocal = answers["1c_vocal"]
	s.Gestos = answers["1c_gestos"]
	s.Verbal = answers["1c_verbal"]
	s.Score1CRaw = s.Vocal + s.Gestos + s.Verbal
	s.Score1C = s.Score1CRaw
	if s.Score1C > ProcMax1C {
		s.Score1C = ProcMax1C
	}

	s.Score1D = answers["1d_1"]
	s.Total1 = s.Score1A + s.Score1B + s.Score1C + s.Score1D

	s.Score2 = answers["2_1"]

	s.Score3A = answers["3a_1"]
	s.Score3B = answers["3b_1"]
	s.Score3C = answers["3c_1"]
	s.Score3D = answers["3d_gestual"] + answers["3d_sonora"]
	s.Total3 = s.Score3A + s.Score3B + s.Score3C + s.Score3D

	s.GrandTotal = s.Total1 + s.Score2 + s.Total3
	return s
}

// RawTotal is the uncapped point sum, used when comparing two PROC records.
func (s ProcScore) RawTotal() int {
	return s.GrandTotal - s.Score1C + s.Score1CRaw
}

func sumPrefix(answers map[string]int, prefix string) int {
	sum := 0
	for id, v := range answers {
		if strings.HasPrefix(id, prefix) {
			sum += v
		}
	}
	return sum
}
