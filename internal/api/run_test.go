package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/engine"
	"github.com/seantiz/runbroker/internal/model"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestRunStdout(t *testing.T) {
	srv := newTestServerWith(t, stdoutDriver("42\n"), nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/run", `{"languageKey":"python","sourceCode":"print(42)","stdin":""}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var out model.ExecutionOutcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Text != "42\n" || out.Kind != model.KindStdOut {
		t.Errorf("outcome = %+v, want stdout 42", out)
	}
}

func TestRunRuntimeErrorIsOK(t *testing.T) {
	d := &stubDriver{raw: &backend.MirrorResponse{Run: backend.MirrorStage{Stderr: "boom"}}}
	srv := newTestServerWith(t, d, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/run", `{"languageKey":"python","sourceCode":"raise"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var out model.ExecutionOutcome
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Kind != model.KindRuntimeError {
		t.Errorf("kind = %q, want runtime_error", out.Kind)
	}
}

func TestRunStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		reason     backend.Reason
		wantStatus int
		wantText   string
	}{
		{"unreachable", backend.ReasonAllEndpointsUnreachable, http.StatusBadGateway, engine.UnreachableText},
		{"submit failed", backend.ReasonSubmitFailed, http.StatusBadGateway, engine.SubmitFailedText},
		{"poll timeout", backend.ReasonPollTimeout, http.StatusGatewayTimeout, engine.PollTimeoutText},
		{"abandoned", backend.ReasonAbandoned, http.StatusServiceUnavailable, engine.AbandonedText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDriver{err: &backend.DriverError{Reason: tt.reason, Err: errors.New("x")}}
			srv := newTestServerWith(t, d, nil)
			ts := httptest.NewServer(srv.Router())
			defer ts.Close()

			resp := postJSON(t, ts.URL+"/v1/run", `{"languageKey":"python","sourceCode":"x"}`)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var out model.ExecutionOutcome
			json.NewDecoder(resp.Body).Decode(&out)
			if out.Text != tt.wantText || out.Kind != model.KindBrokerFailure {
				t.Errorf("outcome = %+v, want broker failure %q", out, tt.wantText)
			}
		})
	}
}

func TestRunValidation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"missing source", `{"languageKey":"python"}`},
		{"missing language", `{"sourceCode":"x"}`},
		{"unsupported language", `{"languageKey":"brainfuck","sourceCode":"+"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/run", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}

	srv.engine.Wait()
	_, total, err := srv.store.ListExecutions(t.Context(), 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if total != 0 {
		t.Errorf("audited executions = %d, want 0 for rejected requests", total)
	}
}

func TestLegacyRunCode(t *testing.T) {
	srv := newTestServerWith(t, stdoutDriver("hi\n"), nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/run-code", `{"language_id":71,"source_code":"print('hi')","stdin":""}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var out legacyRunResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Output != "hi\n" {
		t.Errorf("output = %q, want hi", out.Output)
	}

	srv.engine.Wait()
	recs, _, err := srv.store.ListExecutions(t.Context(), 10, 0)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(recs) != 1 || recs[0].LanguageKey != model.LanguagePython {
		t.Errorf("audit records = %+v, want one python record", recs)
	}
}

func TestLegacyRunCodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		driver     *stubDriver
		body       string
		wantStatus int
		wantOutput string
	}{
		{
			name:       "missing fields",
			driver:     stdoutDriver("x"),
			body:       `{"language_id":71}`,
			wantStatus: http.StatusBadRequest,
			wantOutput: engine.MissingFieldsText,
		},
		{
			name:       "unsupported language",
			driver:     stdoutDriver("x"),
			body:       `{"language_id":999,"source_code":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantOutput: "Unsupported language: 999",
		},
		{
			name:       "all mirrors down",
			driver:     &stubDriver{err: &backend.DriverError{Reason: backend.ReasonAllEndpointsUnreachable}},
			body:       `{"language_id":71,"source_code":"x"}`,
			wantStatus: http.StatusInternalServerError,
			wantOutput: engine.UnreachableText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServerWith(t, tt.driver, nil)
			ts := httptest.NewServer(srv.Router())
			defer ts.Close()

			resp := postJSON(t, ts.URL+"/run-code", tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var out legacyRunResponse
			json.NewDecoder(resp.Body).Decode(&out)
			if out.Output != tt.wantOutput {
				t.Errorf("output = %q, want %q", out.Output, tt.wantOutput)
			}
		})
	}
}

func TestRunRateLimited(t *testing.T) {
	srv := newTestServerWith(t, stdoutDriver("ok"), NewIPRateLimiter(0.001, 2, false))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := `{"languageKey":"python","sourceCode":"x"}`
	// A rotating X-Real-IP must not earn a fresh bucket.
	post := func(i int) *http.Response {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/run", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST /v1/run: %v", err)
		}
		return resp
	}
	for i := 0; i < 2; i++ {
		resp := post(i)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode)
		}
	}

	resp := post(2)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}

	// Read endpoints are not limited.
	get, err := http.Get(ts.URL + "/v1/languages")
	if err != nil {
		t.Fatalf("GET /v1/languages: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("languages status = %d, want 200", get.StatusCode)
	}
}

func TestListLanguages(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/languages")
	if err != nil {
		t.Fatalf("GET /v1/languages: %v", err)
	}
	defer resp.Body.Close()

	var got languagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Driver != model.DriverMirror {
		t.Errorf("driver = %q, want mirror", got.Driver)
	}
	if strings.Join(got.Endpoints, ",") != "http://mirror-1,http://mirror-2" {
		t.Errorf("endpoints = %v, want configured order", got.Endpoints)
	}
	if len(got.Languages) != len(model.DefaultBindings()) {
		t.Errorf("languages = %d, want %d", len(got.Languages), len(model.DefaultBindings()))
	}
}

func TestOutcomeStatus(t *testing.T) {
	tests := []struct {
		out  model.ExecutionOutcome
		want int
	}{
		{model.ExecutionOutcome{Kind: model.KindNoOutput}, http.StatusOK},
		{model.ExecutionOutcome{Kind: model.KindCompileError}, http.StatusOK},
		{model.ExecutionOutcome{Kind: model.KindBrokerFailure, Failure: model.FailureValidation}, http.StatusBadRequest},
		{model.ExecutionOutcome{Kind: model.KindBrokerFailure, Failure: model.FailureSubmitFailed}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := outcomeStatus(tt.out); got != tt.want {
			t.Errorf("outcomeStatus(%+v) = %d, want %d", tt.out, got, tt.want)
		}
	}
}
