package assessment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Type distinguishes the two assessment protocols.
type Type string

const (
	TypeMatrix Type = "MATRIX"
	TypeProc   Type = "PROC"
)

// AnswerStatus is the competence judgement for one Matrix level entry.
type AnswerStatus string

const (
	StatusNone     AnswerStatus = "none"
	StatusEmergent AnswerStatus = "emergent"
	StatusMastered AnswerStatus = "mastered"
)

// UserData is the patient identification form. All fields are free text; the
// clinician types them as they appear on the referral.
type UserData struct {
	Name               string `json:"name"`
	Age                string `json:"age"`
	Gender             string `json:"gender"`
	FatherName         string `json:"fatherName"`
	MotherName         string `json:"motherName"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	Street             string `json:"street"`
	Number             string `json:"number"`
	Zip                string `json:"zip"`
	Neighborhood       string `json:"neighborhood"`
	Diagnosis          string `json:"diagnosis"`
	ConsultationReason string `json:"consultationReason"`
	SpeechTherapist    string `json:"speechTherapist"`
	Observations       string `json:"observations"`
}

// Field returns a form field by its JSON name.
func (u UserData) Field(name string) (string, bool) {
	switch name {
	case "name":
		return u.Name, true
	case "age":
		return u.Age, true
	case "gender":
		return u.Gender, true
	case "fatherName":
		return u.FatherName, true
	case "motherName":
		return u.MotherName, true
	case "date":
		return u.Date, true
	case "time":
		return u.Time, true
	case "phone":
		return u.Phone, true
	case "email":
		return u.Email, true
	case "street":
		return u.Street, true
	case "number":
		return u.Number, true
	case "zip":
		return u.Zip, true
	case "neighborhood":
		return u.Neighborhood, true
	case "diagnosis":
		return u.Diagnosis, true
	case "consultationReason":
		return u.ConsultationReason, true
	case "speechTherapist":
		return u.SpeechTherapist, true
	case "observations":
		return u.Observations, true
	}
	return "", false
}

// SetField updates a form field by its JSON name.
func (u *UserData) SetField(name, value string) bool {
	switch name {
	case "name":
		u.Name = value
	case "age":
		u.Age = value
	case "gender":
		u.Gender = value
	case "fatherName":
		u.FatherName = value
	case "motherName":
		u.MotherName = value
	case "date":
		u.Date = value
	case "time":
		u.Time = value
	case "phone":
		u.Phone = value
	case "email":
		u.Email = value
	case "street":
		u.Street = value
	case "number":
		u.Number = value
	case "zip":
		u.Zip = value
	case "neighborhood":
		u.Neighborhood = value
	case "diagnosis":
		u.Diagnosis = value
	case "consultationReason":
		u.ConsultationReason = value
	case "speechTherapist":
		u.SpeechTherapist = value
	case "observations":
		u.Observations = value
	default:
		return false
	}
	return true
}

// AssessmentRecord is one saved assessment, Matrix or PROC. Matrix answers are
// keyed by level-entry ID ("C1_3"); PROC answers by item ID with the selected
// option's point value.
type AssessmentRecord struct {
	ID               string                  `json:"id"`
	Type             Type                    `json:"type"`
	PatientID        string                  `json:"patientId,omitempty"`
	LastModified     time.Time               `json:"lastModified"`
	UserData         UserData                `json:"userData"`
	Answers          map[string]AnswerStatus `json:"answers,omitempty"`
	ProcAnswers      map[string]int          `json:"procAnswers,omitempty"`
	ProcChecklist    map[string]bool         `json:"procChecklist,omitempty"`
	CurrentSection   string                  `json:"currentSection,omitempty"`
	Progress         int                     `json:"progress"`
	ClinicalAnalysis string                  `json:"clinicalAnalysis,omitempty"`
}

// NewRecord creates an empty record of the given type. The ID is derived from
// the creation instant; collisions are not a concern at clinical data rates.
func NewRecord(t Type, now time.Time) *AssessmentRecord {
	r := &AssessmentRecord{
		ID:           strconv.FormatInt(now.UnixMilli(), 10),
		Type:         t,
		PatientID:    uuid.NewString(),
		LastModified: now,
		Progress:     0,
	}
	switch t {
	case TypeMatrix:
		r.Answers = make(map[string]AnswerStatus)
		r.CurrentSection = "A"
	case TypeProc:
		r.ProcAnswers = make(map[string]int)
		r.ProcChecklist = make(map[string]bool)
	}
	return r
}

// Started reports whether any answer has been entered.
func (r *AssessmentRecord) Started() bool {
	return len(r.Answers) > 0 || len(r.ProcAnswers) > 0
}

// UnmarshalJSON accepts both the current flat answer map and the older nested
// form keyed by question ID and numeric level, rewriting the latter to
// entry-ID keys ("C1" level 3 becomes "C1_3").
func (r *AssessmentRecord) UnmarshalJSON(data []byte) error {
	type plain AssessmentRecord
	aux := struct {
		*plain
		Answers map[string]json.RawMessage `json:"answers"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Answers) == 0 {
		return nil
	}

	r.Answers = make(map[string]AnswerStatus, len(aux.Answers))
	for key, raw := range aux.Answers {
		var status AnswerStatus
		if err := json.Unmarshal(raw, &status); err == nil {
			r.Answers[key] = status
			continue
		}
		var byLevel map[string]AnswerStatus
		if err := json.Unmarshal(raw, &byLevel); err != nil {
			return fmt.Errorf("answer %q: unrecognized format", key)
		}
		for level, status := range byLevel {
			r.Answers[key+"_"+level] = status
		}
	}
	return nil
}
