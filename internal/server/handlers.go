package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/backup"
	"github.com/fonotools/avalia/internal/report"
)

const maxImportBytes = 10 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// A settings read exercises the storage backend end to end.
	if _, err := s.store.GetSetting(r.Context(), "theme"); err != nil && !errors.Is(err, assessment.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.auth.Verify(req.Username, req.Password); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Logout()
	if err := s.session.Login(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	slog.Info("login", "username", req.Username)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Logout()
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.GetAll(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		records = assessment.SearchRecords(records, q)
	}
	if records == nil {
		records = []*assessment.AssessmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type assessment.Type `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.CreateRecord(req.Type, time.Now())
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	var record assessment.AssessmentRecord
	if err := decodeJSON(r, &record); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record.ID = r.PathValue("id")
	if err := s.store.Save(r.Context(), &record); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.hub.broadcast(event{Type: eventRecordSaved, RecordID: record.ID})
	writeJSON(w, http.StatusOK, &record)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.hub.broadcast(event{Type: eventRecordDeleted, RecordID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if record.Type == assessment.TypeProc {
		writeJSON(w, http.StatusOK, map[string]any{
			"type":     record.Type,
			"progress": record.Progress,
			"scores":   assessment.ComputeProcScores(record.ProcAnswers),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     record.Type,
		"progress": record.Progress,
		"stats":    assessment.ComputeMatrixStats(s.catalog, record.Answers),
	})
}

func (s *Server) handleResultsXLSX(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	data, err := report.BuildWorkbook(s.catalog, record)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "avaliacao-"+record.ID+".xlsx"))
	w.Write(data)
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.GetAll(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	groups := assessment.GroupByPatient(records)
	if groups == nil {
		groups = []assessment.PatientGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a, err := s.store.Get(r.Context(), req.A)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	b, err := s.store.Get(r.Context(), req.B)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	cmp, err := assessment.Compare(s.catalog, a, b)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if s.narrative == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no narrative provider configured"))
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.store.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	text, err := s.narrative.Generate(r.Context(), s.catalog, record)
	if err != nil {
		// The record keeps its previous analysis; the UI shows the failure.
		slog.Warn("narrative generation failed", "record", record.ID, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	record.ClinicalAnalysis = text
	if err := s.store.Save(r.Context(), record); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.hub.broadcast(event{Type: eventRecordSaved, RecordID: record.ID})
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.store.GetSetting(r.Context(), "theme")
	if errors.Is(err, assessment.ErrNotFound) {
		theme = "light"
	} else if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown theme %q", req.Theme))
		return
	}
	if err := s.store.SetSetting(r.Context(), "theme", req.Theme); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": req.Theme})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := backup.Export(r.Context(), s.store)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="avalia-backup.json"`)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := backup.Import(r.Context(), s.store, data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	slog.Info("backup imported", "records", n)
	s.hub.broadcast(event{Type: eventRecordsImported})
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.store.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.SelectRecord(record)
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.store.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.EditRecord(record)
	})
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.UpdateUserData(req.Field, req.Value)
	})
}

func (s *Server) handleRegistration(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.SubmitRegistration()
	})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Section string `json:"section"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.SetSection(req.Section)
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntryID string                  `json:"entryId"`
		Status  assessment.AnswerStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.Answer(req.EntryID, req.Status)
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.NextQuestion()
	})
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.PrevQuestion()
	})
}

func (s *Server) handleCompleteSection(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.CompleteSection()
	})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.ReviewSection()
	})
}

func (s *Server) handleProcTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.SetProcTab(req.Tab)
	})
}

func (s *Server) handleProcAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"itemId"`
		Value  int    `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.SetProcAnswer(req.ItemID, req.Value)
	})
}

func (s *Server) handleProcChecklist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID  string `json:"itemId"`
		Checked bool   `json:"checked"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.SetProcChecklist(req.ItemID, req.Checked)
	})
}

func (s *Server) handleProcFinish(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.FinishProc()
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return sess.UpdateAnalysis(req.Text)
	})
}

func (s *Server) handleEditResults(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.EditResults()
	})
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	s.sessionOp(w, r, func(sess *assessment.Session) (*assessment.AssessmentRecord, error) {
		return nil, sess.Exit()
	})
}
