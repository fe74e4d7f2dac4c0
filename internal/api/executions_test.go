package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/runbroker/internal/model"
)

func seedExecution(t *testing.T, srv *Server, lang, kind string, durationMS int) *model.AuditRecord {
	t.Helper()
	rec := &model.AuditRecord{
		ID:          model.NewID(),
		LanguageKey: lang,
		RuntimeID:   71,
		Driver:      model.DriverMirror,
		Endpoint:    "http://mirror-1",
		SourceCode:  "print(1)",
		OutcomeText: "1\n",
		OutcomeKind: kind,
		DurationMS:  durationMS,
		CreatedAt:   time.Now().UTC(),
	}
	if err := srv.store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return rec
}

func TestGetExecutionExisting(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := seedExecution(t, srv, model.LanguagePython, model.KindStdOut, 10)

	resp, err := http.Get(ts.URL + "/v1/executions/" + created.ID)
	if err != nil {
		t.Fatalf("GET /v1/executions/%s: %v", created.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var got model.AuditRecord
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
	if got.OutcomeText != "1\n" {
		t.Errorf("OutcomeText = %q, want %q", got.OutcomeText, "1\n")
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/executions/nonexistent")
	if err != nil {
		t.Fatalf("GET /v1/executions/nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListExecutionsEmpty(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/executions")
	if err != nil {
		t.Fatalf("GET /v1/executions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var listResp listExecutionsResponse
	json.NewDecoder(resp.Body).Decode(&listResp)

	if listResp.Total != 0 {
		t.Errorf("total = %d, want 0", listResp.Total)
	}
	if listResp.Executions == nil || len(listResp.Executions) != 0 {
		t.Errorf("executions = %v, want empty list", listResp.Executions)
	}
	if listResp.Limit != defaultListLimit {
		t.Errorf("limit = %d, want %d", listResp.Limit, defaultListLimit)
	}
}

func TestListExecutionsAfterRuns(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"languageKey":"python","sourceCode":"print(%d)"}`, i)
		resp, err := http.Post(ts.URL+"/v1/run", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST /v1/run: %v", err)
		}
		resp.Body.Close()
	}
	srv.engine.Wait()

	resp, err := http.Get(ts.URL + "/v1/executions?limit=2&offset=0")
	if err != nil {
		t.Fatalf("GET /v1/executions: %v", err)
	}
	defer resp.Body.Close()

	var listResp listExecutionsResponse
	json.NewDecoder(resp.Body).Decode(&listResp)

	if listResp.Total != 5 {
		t.Errorf("total = %d, want 5", listResp.Total)
	}
	if len(listResp.Executions) != 2 {
		t.Errorf("executions count = %d, want 2", len(listResp.Executions))
	}
	if listResp.Limit != 2 || listResp.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want 2/0", listResp.Limit, listResp.Offset)
	}
	for _, rec := range listResp.Executions {
		if rec.Endpoint != "http://mirror-1" {
			t.Errorf("endpoint = %q, want http://mirror-1", rec.Endpoint)
		}
	}
}

func TestListExecutionsClampsLimit(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/executions?limit=1000&offset=-3")
	if err != nil {
		t.Fatalf("GET /v1/executions: %v", err)
	}
	defer resp.Body.Close()

	var listResp listExecutionsResponse
	json.NewDecoder(resp.Body).Decode(&listResp)

	if listResp.Limit != defaultListLimit {
		t.Errorf("limit = %d, want %d", listResp.Limit, defaultListLimit)
	}
	if listResp.Offset != 0 {
		t.Errorf("offset = %d, want 0", listResp.Offset)
	}
}
