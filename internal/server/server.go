// Package server exposes the assessment application to the browser UI over
// HTTP: record CRUD, the session state machine, results, reports, backup, and
// a websocket feed of record changes.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/auth"
	"github.com/fonotools/avalia/internal/backup"
	"github.com/fonotools/avalia/internal/protocol"
	"github.com/fonotools/avalia/internal/report"
)

// Server holds the application wiring. It serves one clinician; session
// operations are serialized under a mutex rather than multiplexed per user.
type Server struct {
	catalog   *protocol.Catalog
	store     assessment.RecordStore
	auth      *auth.Authenticator
	narrative *report.NarrativeGenerator // nil when no provider is configured

	mu      sync.Mutex
	session *assessment.Session

	hub *hub
}

// New wires the HTTP surface. narrative may be nil; the narrative endpoint
// then reports 503.
func New(catalog *protocol.Catalog, store assessment.RecordStore, a *auth.Authenticator, narrative *report.NarrativeGenerator) *Server {
	return &Server{
		catalog:   catalog,
		store:     store,
		auth:      a,
		narrative: narrative,
		session:   assessment.NewSession(catalog),
		hub:       newHub(),
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/state", s.handleState)

	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /api/records/{id}", s.handlePutRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /api/records/{id}/results", s.handleResults)
	mux.HandleFunc("GET /api/records/{id}/results.xlsx", s.handleResultsXLSX)

	mux.HandleFunc("GET /api/patients", s.handlePatients)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("POST /api/narrative", s.handleNarrative)

	mux.HandleFunc("GET /api/settings/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/settings/theme", s.handlePutTheme)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("POST /api/session/select", s.handleSelect)
	mux.HandleFunc("POST /api/session/edit", s.handleEdit)
	mux.HandleFunc("POST /api/session/userdata", s.handleUserData)
	mux.HandleFunc("POST /api/session/registration", s.handleRegistration)
	mux.HandleFunc("POST /api/session/section", s.handleSection)
	mux.HandleFunc("POST /api/session/answer", s.handleAnswer)
	mux.HandleFunc("POST /api/session/next", s.handleNext)
	mux.HandleFunc("POST /api/session/prev", s.handlePrev)
	mux.HandleFunc("POST /api/session/complete-section", s.handleCompleteSection)
	mux.HandleFunc("POST /api/session/review", s.handleReview)
	mux.HandleFunc("POST /api/session/proc/tab", s.handleProcTab)
	mux.HandleFunc("POST /api/session/proc/answer", s.handleProcAnswer)
	mux.HandleFunc("POST /api/session/proc/checklist", s.handleProcChecklist)
	mux.HandleFunc("POST /api/session/proc/finish", s.handleProcFinish)
	mux.HandleFunc("POST /api/session/analysis", s.handleAnalysis)
	mux.HandleFunc("POST /api/session/edit-results", s.handleEditResults)
	mux.HandleFunc("POST /api/session/exit", s.handleExit)

	return mux
}

// state is the session snapshot the UI renders from.
type state struct {
	View          assessment.View              `json:"view"`
	Record        *assessment.AssessmentRecord `json:"record,omitempty"`
	Section       string                       `json:"section,omitempty"`
	QuestionIndex int                          `json:"questionIndex"`
	ProcTab       string                       `json:"procTab,omitempty"`
}

// snapshot must be called with s.mu held.
func (s *Server) snapshot() state {
	return state{
		View:          s.session.View(),
		Record:        s.session.Record(),
		Section:       s.session.Section(),
		QuestionIndex: s.session.QuestionIndex(),
		ProcTab:       s.session.ProcTab(),
	}
}

// sessionOp runs one transition under the lock, persists the record it
// returns, and answers with the new session state. Transition errors map to
// 409: the UI issued an operation the current view does not allow.
func (s *Server) sessionOp(w http.ResponseWriter, r *http.Request, op func(*assessment.Session) (*assessment.AssessmentRecord, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := op(s.session)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, assessment.ErrMissingField) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	if record != nil {
		if err := s.store.Save(r.Context(), record); err != nil {
			slog.Error("saving record failed", "record", record.ID, "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.hub.broadcast(event{Type: eventRecordSaved, RecordID: record.ID})
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain sentinels onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, assessment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, assessment.ErrTypeMismatch),
		errors.Is(err, assessment.ErrMissingField),
		errors.Is(err, backup.ErrInvalidDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
