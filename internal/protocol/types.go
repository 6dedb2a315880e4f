package protocol

// LevelEntry is one competence level defined for a question. The entry ID is
// the canonical answer key; the numeric level (1-7) is kept for the reporting
// grid. A question may skip levels entirely; absence means "not applicable".
type LevelEntry struct {
	ID        string   `yaml:"id"`
	Level     int      `yaml:"level"`
	Label     string   `yaml:"label"`
	Behaviors []string `yaml:"behaviors"`
}

// Question is one Communication Matrix question with its applicable levels.
type Question struct {
	ID          string       `yaml:"id"`
	Section     string       `yaml:"section"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Levels      []LevelEntry `yaml:"levels"`
}

// EntryForLevel returns the level entry at the given numeric level, if defined.
func (q Question) EntryForLevel(level int) (LevelEntry, bool) {
	for _, e := range q.Levels {
		if e.Level == level {
			return e, true
		}
	}
	return LevelEntry{}, false
}

// SectionInfo describes one of the three developmental phases (A, B, C).
type SectionInfo struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// MatrixRow binds a communicative-intent category to a question and the
// numeric levels relevant to that row in the reporting grid. The rows are a
// second grouping over the same cells the questions define, so category and
// level aggregates computed from them must reconcile.
type MatrixRow struct {
	Category   string `yaml:"category"`
	Label      string `yaml:"label"`
	QuestionID string `yaml:"question_id"`
	Levels     []int  `yaml:"levels"`
}

// ProcOption is one point-valued choice for a PROC item.
type ProcOption struct {
	Label string `yaml:"label"`
	Value int    `yaml:"value"`
}

// ProcItem is one observation item with mutually exclusive options.
type ProcItem struct {
	ID      string       `yaml:"id"`
	Text    string       `yaml:"text"`
	Options []ProcOption `yaml:"options"`
}

// ProcSection groups PROC items under a sub-score with a declared ceiling.
type ProcSection struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	MaxScore    int        `yaml:"max_score"`
	Items       []ProcItem `yaml:"items"`
}

// ChecklistItem is a qualitative observation with no score contribution.
type ChecklistItem struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// ChecklistSection groups qualitative checklist items.
type ChecklistSection struct {
	ID    string          `yaml:"id"`
	Title string          `yaml:"title"`
	Items []ChecklistItem `yaml:"items"`
}

// MatrixCategories lists the communicative-intent categories in display order.
var MatrixCategories = []string{"REJEITAR", "OBTER", "SOCIAL", "INFO"}

// SectionOrder is the fixed progression of Matrix sections.
var SectionOrder = []string{"A", "B", "C"}

// MinLevel and MaxLevel bound the Matrix competence scale.
const (
	MinLevel = 1
	MaxLevel = 7
)
