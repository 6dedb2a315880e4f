package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/auth"
	"github.com/fonotools/avalia/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *assessment.MemoryStore) {
	t.Helper()
	catalog, err := protocol.Load()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	hash, err := auth.HashPassword("segredo")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store := assessment.NewMemoryStore()
	return New(catalog, store, auth.New("fono", hash), nil), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) state {
	t.Helper()
	var st state
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding state: %v (body %s)", err, rec.Body.String())
	}
	return st
}

// login authenticates the shared test account.
func login(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/login", map[string]string{
		"username": "fono", "password": "segredo",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
}

var registrationFields = map[string]string{
	"name": "Ana", "age": "4", "gender": "F", "speechTherapist": "Dra. Lu",
	"motherName": "Maria", "fatherName": "José", "street": "Rua A",
	"number": "10", "neighborhood": "Centro", "zip": "01000-000",
	"phone": "11 99999-0000", "email": "ana@example.com",
	"date": "2026-09-01", "time": "10:00", "diagnosis": "TEA",
}

func fillRegistration(t *testing.T, h http.Handler) {
	t.Helper()
	for field, value := range registrationFields {
		rec := doJSON(t, h, http.MethodPost, "/api/session/userdata", map[string]string{
			"field": field, "value": value,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("userdata %s = %d: %s", field, rec.Code, rec.Body.String())
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	tests := []struct {
		path     string
		wantBody string
	}{
		{"/healthz", `{"status":"ok"}`},
		{"/readyz", `{"status":"ready"}`},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodGet, tt.path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", tt.path, rec.Code)
		}
		if rec.Body.String() != tt.wantBody {
			t.Errorf("%s body = %q, want %q", tt.path, rec.Body.String(), tt.wantBody)
		}
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	rec := doJSON(t, h, http.MethodPost, "/api/login", map[string]string{
		"username": "fono", "password": "errada",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/login", map[string]string{
		"username": "fono", "password": "segredo",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	if st := decodeState(t, rec); st.View != assessment.ViewLanding {
		t.Errorf("view after login = %s, want landing", st.View)
	}
}

func TestMatrixFlow(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()
	login(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/records", map[string]string{"type": "MATRIX"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeState(t, rec)
	if st.View != assessment.ViewRegistration || st.Record == nil {
		t.Fatalf("state after create = %+v", st)
	}
	id := st.Record.ID

	// The empty record is already on the list.
	if _, err := store.Get(context.Background(), id); err != nil {
		t.Fatalf("record not persisted on create: %v", err)
	}

	// Submitting with empty fields fails closed.
	rec = doJSON(t, h, http.MethodPost, "/api/session/registration", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty registration = %d, want 400", rec.Code)
	}

	fillRegistration(t, h)
	rec = doJSON(t, h, http.MethodPost, "/api/session/registration", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("registration = %d: %s", rec.Code, rec.Body.String())
	}
	if st = decodeState(t, rec); st.View != assessment.ViewTriage {
		t.Fatalf("view after registration = %s, want triage", st.View)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/session/section", map[string]string{"section": "A"})
	if st = decodeState(t, rec); st.View != assessment.ViewAssessment {
		t.Fatalf("view after section = %s", st.View)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/session/answer", map[string]string{
		"entryId": "A1_1", "status": "mastered",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer = %d: %s", rec.Code, rec.Body.String())
	}
	st = decodeState(t, rec)
	if st.Record.Answers["A1_1"] != assessment.StatusMastered {
		t.Errorf("answer not stored: %v", st.Record.Answers)
	}
	if st.Record.Progress != 1 {
		t.Errorf("progress = %d, want 1", st.Record.Progress)
	}

	// The answer reached the store, not only the working copy.
	saved, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if saved.Answers["A1_1"] != assessment.StatusMastered {
		t.Errorf("saved answers = %v", saved.Answers)
	}
}

func TestSessionOpFromWrongView(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	login(t, h)

	// No record is open; answering must be refused.
	rec := doJSON(t, h, http.MethodPost, "/api/session/answer", map[string]string{
		"entryId": "A1_1", "status": "mastered",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("answer from landing = %d, want 409", rec.Code)
	}
}

func TestListAndSearchRecords(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	ctx := context.Background()
	for i, name := range []string{"José Silva", "Maria Souza"} {
		r := assessment.NewRecord(assessment.TypeMatrix, time.Now().Add(time.Duration(i)*time.Millisecond))
		r.UserData.Name = name
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/records", nil)
	var all []*assessment.AssessmentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d records, want 2", len(all))
	}

	// Accent-insensitive query.
	rec = doJSON(t, h, http.MethodGet, "/api/records?q=jose", nil)
	var found []*assessment.AssessmentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &found); err != nil {
		t.Fatalf("decoding search: %v", err)
	}
	if len(found) != 1 || found[0].UserData.Name != "José Silva" {
		t.Errorf("search = %+v, want José Silva only", found)
	}
}

func TestDeleteRecord(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	r := assessment.NewRecord(assessment.TypeProc, time.Now())
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := doJSON(t, h, http.MethodDelete, "/api/records/"+r.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/records/"+r.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestThemeSettings(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	rec := doJSON(t, h, http.MethodGet, "/api/settings/theme", nil)
	if !strings.Contains(rec.Body.String(), `"light"`) {
		t.Errorf("default theme body = %s, want light", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPut, "/api/settings/theme", map[string]string{"theme": "dark"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put theme = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPut, "/api/settings/theme", map[string]string{"theme": "blue"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid theme = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/settings/theme", nil)
	if !strings.Contains(rec.Body.String(), `"dark"`) {
		t.Errorf("theme body = %s, want dark", rec.Body.String())
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	ctx := context.Background()
	a := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	b := assessment.NewRecord(assessment.TypeProc, time.Now().Add(time.Millisecond))
	for _, r := range []*assessment.AssessmentRecord{a, b} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/api/compare", map[string]string{"a": a.ID, "b": b.ID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("compare mismatch = %d, want 400", rec.Code)
	}
}

func TestResultsEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	r := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	r.UserData.Name = "Ana"
	r.Answers["A1_1"] = assessment.StatusMastered
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/records/%s/results", r.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results = %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Type  assessment.Type        `json:"type"`
		Stats assessment.MatrixStats `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding results: %v", err)
	}
	if res.Stats.TotalMastered != 1 || res.Stats.TotalSlots != 76 {
		t.Errorf("stats = %+v", res.Stats)
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/records/%s/results.xlsx", r.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("xlsx content type = %q", ct)
	}
}

func TestNarrativeUnconfigured(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	r := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec := doJSON(t, h, http.MethodPost, "/api/narrative", map[string]string{"id": r.ID})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("narrative without provider = %d, want 503", rec.Code)
	}
}

func TestExportImportHandlers(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Routes()

	r := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	r.UserData.Name = "Ana"
	if err := store.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	exported := rec.Body.Bytes()

	srv2, store2 := newTestServer(t)
	h2 := srv2.Routes()
	req := httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(exported))
	rec2 := httptest.NewRecorder()
	h2.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("import = %d: %s", rec2.Code, rec2.Body.String())
	}
	if got, err := store2.Get(context.Background(), r.ID); err != nil || got.UserData.Name != "Ana" {
		t.Errorf("imported record = %+v, %v", got, err)
	}

	rec2 = httptest.NewRecorder()
	h2.ServeHTTP(rec2, httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(`{"bad"`)))
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("bad import = %d, want 400", rec2.Code)
	}
}

func TestEventsFeed(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dialing events feed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the handler a beat to register the subscriber.
	time.Sleep(50 * time.Millisecond)

	r := assessment.NewRecord(assessment.TypeMatrix, time.Now())
	body, _ := json.Marshal(r)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/records/"+r.ID, bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT record: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT record = %d", resp.StatusCode)
	}

	var e event
	if err := wsjson.Read(ctx, conn, &e); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if e.Type != eventRecordSaved || e.RecordID != r.ID {
		t.Errorf("event = %+v, want recordSaved for %s", e, r.ID)
	}
}
