package assessment

import (
	"errors"
	"fmt"
	"time"

	"github.com/fonotools/avalia/internal/protocol"
)

// View is the screen the UI should render for a session.
type View string

const (
	ViewLogin          View = "login"
	ViewLanding        View = "landing"
	ViewRegistration   View = "registration"
	ViewTriage         View = "triage"
	ViewAssessment     View = "assessment"
	ViewSectionSummary View = "sectionSummary"
	ViewResults        View = "results"
	ViewProcAssessment View = "procAssessment"
	ViewProcResults    View = "procResults"
)

// ProcTabs are the PROC screen's block tabs: part 1, part 2, part 3, and the
// qualitative checklist.
var ProcTabs = []string{"1a", "2", "3a", "check"}

// ErrMissingField is wrapped with the first empty required registration field.
var ErrMissingField = errors.New("required field is empty")

// requiredFields must be non-empty before an assessment can start, in the
// order they appear on the form.
var requiredFields = []string{
	"name", "age", "gender", "speechTherapist", "motherName", "fatherName",
	"street", "number", "neighborhood", "zip", "phone", "email",
	"date", "time", "diagnosis",
}

// Session is one clinician's pass through the application. Every transition
// mutates the session and returns the record the caller must persist, nil
// when nothing changed on disk. Persistence failures are therefore the
// caller's to observe, not swallowed inside the state machine.
type Session struct {
	catalog       *protocol.Catalog
	view          View
	authenticated bool
	record        *AssessmentRecord
	section       string
	questionIdx   int
	procTab       string
}

// NewSession starts at the login screen.
func NewSession(catalog *protocol.Catalog) *Session {
	return &Session{catalog: catalog, view: ViewLogin}
}

// View returns the screen to render.
func (s *Session) View() View { return s.view }

// Record returns the working copy of the open record, nil when none is open.
func (s *Session) Record() *AssessmentRecord { return s.record }

// Section returns the Matrix section under assessment.
func (s *Session) Section() string { return s.section }

// QuestionIndex returns the cursor within the current section.
func (s *Session) QuestionIndex() int { return s.questionIdx }

// ProcTab returns the active PROC tab.
func (s *Session) ProcTab() string { return s.procTab }

// CurrentQuestion returns the question under the cursor.
func (s *Session) CurrentQuestion() (protocol.Question, bool) {
	qs := s.catalog.SectionQuestions(s.section)
	if s.questionIdx < 0 || s.questionIdx >= len(qs) {
		return protocol.Question{}, false
	}
	return qs[s.questionIdx], true
}

// Login moves an authenticated user to the landing screen. Credential
// verification happens before this is called.
func (s *Session) Login() error {
	if s.view != ViewLogin {
		return fmt.Errorf("cannot log in from view %s", s.view)
	}
	s.authenticated = true
	s.view = ViewLanding
	return nil
}

// Logout drops the session back to the login screen and discards the working
// copy.
func (s *Session) Logout() {
	*s = Session{catalog: s.catalog, view: ViewLogin}
}

// CreateRecord opens a fresh record of the given type on the registration
// form. The empty record is persisted immediately so it appears on the
// landing list even if the form is abandoned.
func (s *Session) CreateRecord(t Type, now time.Time) (*AssessmentRecord, error) {
	if s.view != ViewLanding {
		return nil, fmt.Errorf("cannot create a record from view %s", s.view)
	}
	if t != TypeMatrix && t != TypeProc {
		return nil, fmt.Errorf("unknown assessment type %q", t)
	}
	s.record = NewRecord(t, now)
	s.section = s.record.CurrentSection
	s.questionIdx = 0
	s.procTab = ProcTabs[0]
	s.view = ViewRegistration
	return s.record, nil
}

// SelectRecord opens an existing record and routes by its state: unstarted
// records return to registration, started Matrix records open on results, and
// started PROC records resume the assessment.
func (s *Session) SelectRecord(r *AssessmentRecord) error {
	if s.view != ViewLanding {
		return fmt.Errorf("cannot open a record from view %s", s.view)
	}
	if r == nil {
		return fmt.Errorf("no record selected")
	}
	cp := *r
	s.record = &cp
	s.section = cp.CurrentSection
	if s.section == "" {
		s.section = protocol.SectionOrder[0]
	}
	s.questionIdx = 0
	s.procTab = ProcTabs[0]

	switch {
	case !cp.Started():
		s.view = ViewRegistration
	case cp.Type == TypeProc:
		s.view = ViewProcAssessment
	default:
		s.view = ViewResults
	}
	return nil
}

// EditRecord opens an existing record directly on the registration form.
func (s *Session) EditRecord(r *AssessmentRecord) error {
	if s.view != ViewLanding {
		return fmt.Errorf("cannot edit a record from view %s", s.view)
	}
	if r == nil {
		return fmt.Errorf("no record selected")
	}
	cp := *r
	s.record = &cp
	s.section = cp.CurrentSection
	if s.section == "" {
		s.section = protocol.SectionOrder[0]
	}
	s.questionIdx = 0
	s.procTab = ProcTabs[0]
	s.view = ViewRegistration
	return nil
}

// UpdateUserData writes one registration field on the working copy.
func (s *Session) UpdateUserData(field, value string) (*AssessmentRecord, error) {
	if s.record == nil {
		return nil, fmt.Errorf("no open record")
	}
	if !s.record.UserData.SetField(field, value) {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	return s.record, nil
}

// SubmitRegistration validates the form and advances to the protocol start.
// Validation is fail-closed: the first empty required field aborts the
// submission.
func (s *Session) SubmitRegistration() (*AssessmentRecord, error) {
	if s.view != ViewRegistration {
		return nil, fmt.Errorf("cannot submit registration from view %s", s.view)
	}
	for _, field := range requiredFields {
		v, _ := s.record.UserData.Field(field)
		if v == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	if s.record.Type == TypeProc {
		s.view = ViewProcAssessment
	} else {
		s.view = ViewTriage
	}
	return s.record, nil
}

// SetSection starts (or resumes) a Matrix section from the triage screen.
func (s *Session) SetSection(section string) (*AssessmentRecord, error) {
	if s.view != ViewTriage {
		return nil, fmt.Errorf("cannot choose a section from view %s", s.view)
	}
	if !validSection(section) {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	s.section = section
	s.questionIdx = 0
	s.record.CurrentSection = section
	s.view = ViewAssessment
	return s.record, nil
}

// Answer toggles one level entry: selecting the current status clears it,
// any other status overwrites. Progress is recomputed on every change.
func (s *Session) Answer(entryID string, status AnswerStatus) (*AssessmentRecord, error) {
	if s.view != ViewAssessment {
		return nil, fmt.Errorf("cannot answer from view %s", s.view)
	}
	if status != StatusEmergent && status != StatusMastered {
		return nil, fmt.Errorf("invalid answer status %q", status)
	}
	if !s.entryInSection(entryID) {
		return nil, fmt.Errorf("entry %q is not part of the current question", entryID)
	}

	if s.record.Answers == nil {
		s.record.Answers = make(map[string]AnswerStatus)
	}
	if s.record.Answers[entryID] == status {
		delete(s.record.Answers, entryID)
	} else {
		s.record.Answers[entryID] = status
	}
	s.record.Progress = Progress(s.catalog, s.record.Answers)
	return s.record, nil
}

func (s *Session) entryInSection(entryID string) bool {
	q, ok := s.CurrentQuestion()
	if !ok {
		return false
	}
	for _, e := range q.Levels {
		if e.ID == entryID {
			return true
		}
	}
	return false
}

// NextQuestion advances the cursor; past the last question of the section it
// opens the section summary.
func (s *Session) NextQuestion() error {
	if s.view != ViewAssessment {
		return fmt.Errorf("cannot navigate from view %s", s.view)
	}
	qs := s.catalog.SectionQuestions(s.section)
	if s.questionIdx >= len(qs)-1 {
		s.view = ViewSectionSummary
		return nil
	}
	s.questionIdx++
	return nil
}

// PrevQuestion steps the cursor back; at the first question of section A it
// returns to triage, at the first question of a later section it jumps to the
// previous section's last question.
func (s *Session) PrevQuestion() (*AssessmentRecord, error) {
	if s.view != ViewAssessment {
		return nil, fmt.Errorf("cannot navigate from view %s", s.view)
	}
	if s.questionIdx > 0 {
		s.questionIdx--
		return nil, nil
	}

	idx := sectionIndex(s.section)
	if idx <= 0 {
		s.view = ViewTriage
		return nil, nil
	}

	prev := protocol.SectionOrder[idx-1]
	s.section = prev
	s.questionIdx = len(s.catalog.SectionQuestions(prev)) - 1
	s.record.CurrentSection = prev
	return s.record, nil
}

// CompleteSection leaves the section summary for the next section, or for the
// results screen after the final section.
func (s *Session) CompleteSection() (*AssessmentRecord, error) {
	if s.view != ViewSectionSummary {
		return nil, fmt.Errorf("cannot complete a section from view %s", s.view)
	}

	idx := sectionIndex(s.section)
	if idx < 0 {
		return nil, fmt.Errorf("unknown section %q", s.section)
	}
	if idx == len(protocol.SectionOrder)-1 {
		s.view = ViewResults
		return s.record, nil
	}

	next := protocol.SectionOrder[idx+1]
	s.section = next
	s.questionIdx = 0
	s.record.CurrentSection = next
	s.view = ViewAssessment
	return s.record, nil
}

// ReviewSection reopens the current section at the question the summary was
// reached from; the cursor is left untouched.
func (s *Session) ReviewSection() error {
	if s.view != ViewSectionSummary {
		return fmt.Errorf("cannot review a section from view %s", s.view)
	}
	s.view = ViewAssessment
	return nil
}

// EditResults leaves a results screen: Matrix results reopen the registration
// form, PROC results reopen the answering blocks.
func (s *Session) EditResults() error {
	switch s.view {
	case ViewResults:
		s.view = ViewRegistration
	case ViewProcResults:
		s.view = ViewProcAssessment
	default:
		return fmt.Errorf("cannot edit results from view %s", s.view)
	}
	return nil
}

// SetProcTab switches the PROC screen between its blocks.
func (s *Session) SetProcTab(tab string) error {
	if s.view != ViewProcAssessment {
		return fmt.Errorf("cannot switch tabs from view %s", s.view)
	}
	for _, t := range ProcTabs {
		if t == tab {
			s.procTab = tab
			return nil
		}
	}
	return fmt.Errorf("unknown tab %q", tab)
}

// SetProcAnswer toggles one scored item: re-selecting the stored value clears
// the item, any other value overwrites.
func (s *Session) SetProcAnswer(itemID string, value int) (*AssessmentRecord, error) {
	if s.view != ViewProcAssessment {
		return nil, fmt.Errorf("cannot answer from view %s", s.view)
	}
	if !s.validProcOption(itemID, value) {
		return nil, fmt.Errorf("item %q has no option worth %d", itemID, value)
	}

	if s.record.ProcAnswers == nil {
		s.record.ProcAnswers = make(map[string]int)
	}
	if stored, ok := s.record.ProcAnswers[itemID]; ok && stored == value {
		delete(s.record.ProcAnswers, itemID)
	} else {
		s.record.ProcAnswers[itemID] = value
	}
	s.record.Progress = ProcProgress(s.record.ProcAnswers)
	return s.record, nil
}

func (s *Session) validProcOption(itemID string, value int) bool {
	for _, sec := range s.catalog.ProcSections() {
		for _, it := range sec.Items {
			if it.ID != itemID {
				continue
			}
			for _, o := range it.Options {
				if o.Value == value {
					return true
				}
			}
			return false
		}
	}
	return false
}

// SetProcChecklist marks or unmarks one qualitative checklist item.
func (s *Session) SetProcChecklist(itemID string, checked bool) (*AssessmentRecord, error) {
	if s.view != ViewProcAssessment {
		return nil, fmt.Errorf("cannot update the checklist from view %s", s.view)
	}
	if s.record.ProcChecklist == nil {
		s.record.ProcChecklist = make(map[string]bool)
	}
	if checked {
		s.record.ProcChecklist[itemID] = true
	} else {
		delete(s.record.ProcChecklist, itemID)
	}
	return s.record, nil
}

// FinishProc closes the answering flow and opens the PROC score sheet.
func (s *Session) FinishProc() (*AssessmentRecord, error) {
	if s.view != ViewProcAssessment {
		return nil, fmt.Errorf("cannot finish from view %s", s.view)
	}
	s.view = ViewProcResults
	return s.record, nil
}

// UpdateAnalysis stores the clinical narrative on the open record.
func (s *Session) UpdateAnalysis(text string) (*AssessmentRecord, error) {
	if s.record == nil {
		return nil, fmt.Errorf("no open record")
	}
	s.record.ClinicalAnalysis = text
	return s.record, nil
}

// Exit abandons the working copy and returns to the landing list.
func (s *Session) Exit() error {
	if !s.authenticated {
		return fmt.Errorf("not logged in")
	}
	s.record = nil
	s.section = ""
	s.questionIdx = 0
	s.view = ViewLanding
	return nil
}

func validSection(section string) bool {
	return sectionIndex(section) >= 0
}

func sectionIndex(section string) int {
	for i, s := range protocol.SectionOrder {
		if s == section {
			return i
		}
	}
	return -1
}
