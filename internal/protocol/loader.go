package protocol

import (
	"embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Catalog holds both clinical protocols, loaded once at startup and read-only
// afterwards.
type Catalog struct {
	sections     map[string]SectionInfo
	questions    []Question
	questionByID map[string]Question
	rows         []MatrixRow
	procSections []ProcSection
	procByID     map[string]ProcSection
	checklist    []ChecklistSection
	levelSlots   int
}

type matrixFile struct {
	Sections  map[string]SectionInfo `yaml:"sections"`
	Questions []Question             `yaml:"questions"`
	Rows      []MatrixRow            `yaml:"rows"`
}

type procFile struct {
	Sections  []ProcSection      `yaml:"sections"`
	Checklist []ChecklistSection `yaml:"checklist"`
}

// Load parses the embedded protocol data and validates its internal
// consistency.
func Load() (*Catalog, error) {
	var mf matrixFile
	if err := unmarshalData("data/matrix.yaml", &mf); err != nil {
		return nil, err
	}
	var pf procFile
	if err := unmarshalData("data/proc.yaml", &pf); err != nil {
		return nil, err
	}

	c := &Catalog{
		sections:     mf.Sections,
		questions:    mf.Questions,
		questionByID: make(map[string]Question, len(mf.Questions)),
		rows:         mf.Rows,
		procSections: pf.Sections,
		procByID:     make(map[string]ProcSection, len(pf.Sections)),
		checklist:    pf.Checklist,
	}

	for _, q := range c.questions {
		if _, dup := c.questionByID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		c.questionByID[q.ID] = q
		c.levelSlots += len(q.Levels)
	}
	for _, s := range pf.Sections {
		if _, dup := c.procByID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate proc section id %q", s.ID)
		}
		c.procByID[s.ID] = s
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("validating protocol data: %w", err)
	}

	slog.Info("protocol catalogs loaded",
		"questions", len(c.questions),
		"level_slots", c.levelSlots,
		"rows", len(c.rows),
		"proc_sections", len(c.procSections))
	return c, nil
}

func unmarshalData(name string, v any) error {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validate() error {
	for _, s := range SectionOrder {
		if _, ok := c.sections[s]; !ok {
			return fmt.Errorf("missing section %q", s)
		}
	}

	entryIDs := make(map[string]string)
	for _, q := range c.questions {
		if _, ok := c.sections[q.Section]; !ok {
			return fmt.Errorf("question %s references unknown section %q", q.ID, q.Section)
		}
		if len(q.Levels) == 0 {
			return fmt.Errorf("question %s has no levels", q.ID)
		}
		seen := make(map[int]bool, len(q.Levels))
		for _, e := range q.Levels {
			if e.Level < MinLevel || e.Level > MaxLevel {
				return fmt.Errorf("question %s entry %s: level %d out of range", q.ID, e.ID, e.Level)
			}
			if seen[e.Level] {
				return fmt.Errorf("question %s declares level %d twice", q.ID, e.Level)
			}
			seen[e.Level] = true
			if prev, dup := entryIDs[e.ID]; dup {
				return fmt.Errorf("entry id %s declared by both %s and %s", e.ID, prev, q.ID)
			}
			entryIDs[e.ID] = q.ID
		}
	}

	rowSlots := 0
	for _, r := range c.rows {
		q, ok := c.questionByID[r.QuestionID]
		if !ok {
			return fmt.Errorf("row %q references unknown question %q", r.Label, r.QuestionID)
		}
		for _, lvl := range r.Levels {
			if _, ok := q.EntryForLevel(lvl); !ok {
				return fmt.Errorf("row %q: question %s has no level %d", r.Label, q.ID, lvl)
			}
			rowSlots++
		}
	}
	// The grid rows are a regrouping of the question cells, so the two counts
	// must agree or category/level aggregates diverge from progress.
	if rowSlots != c.levelSlots {
		return fmt.Errorf("grid rows cover %d cells, questions define %d", rowSlots, c.levelSlots)
	}

	itemIDs := make(map[string]string)
	for _, s := range c.procSections {
		if len(s.Items) == 0 {
			return fmt.Errorf("proc section %s has no items", s.ID)
		}
		for _, it := range s.Items {
			if prev, dup := itemIDs[it.ID]; dup {
				return fmt.Errorf("proc item id %s declared by both sections %s and %s", it.ID, prev, s.ID)
			}
			itemIDs[it.ID] = s.ID
			if len(it.Options) == 0 {
				return fmt.Errorf("proc item %s has no options", it.ID)
			}
			for _, o := range it.Options {
				if o.Value < 0 {
					return fmt.Errorf("proc item %s: negative option value %d", it.ID, o.Value)
				}
			}
		}
	}
	return nil
}

// Section returns the metadata of a Matrix section.
func (c *Catalog) Section(id string) (SectionInfo, bool) {
	s, ok := c.sections[id]
	return s, ok
}

// Question returns a Matrix question by ID.
func (c *Catalog) Question(id string) (Question, bool) {
	q, ok := c.questionByID[id]
	return q, ok
}

// Questions returns all Matrix questions in protocol order.
func (c *Catalog) Questions() []Question {
	return c.questions
}

// SectionQuestions returns the questions of one section, in protocol order.
func (c *Catalog) SectionQuestions(section string) []Question {
	var out []Question
	for _, q := range c.questions {
		if q.Section == section {
			out = append(out, q)
		}
	}
	return out
}

// TotalLevelSlots is the number of answerable (question, level) cells across
// the whole Matrix. Progress percentages are computed against it.
func (c *Catalog) TotalLevelSlots() int {
	return c.levelSlots
}

// Rows returns the reporting grid rows in display order.
func (c *Catalog) Rows() []MatrixRow {
	return c.rows
}

// ProcSections returns the scored PROC sections in protocol order.
func (c *Catalog) ProcSections() []ProcSection {
	return c.procSections
}

// ProcSection returns one scored PROC section by ID.
func (c *Catalog) ProcSection(id string) (ProcSection, bool) {
	s, ok := c.procByID[id]
	return s, ok
}

// ProcItemCount is the number of scored PROC items.
func (c *Catalog) ProcItemCount() int {
	n := 0
	for _, s := range c.procSections {
		n += len(s.Items)
	}
	return n
}

// Checklist returns the qualitative PROC checklist sections.
func (c *Catalog) Checklist() []ChecklistSection {
	return c.checklist
}
