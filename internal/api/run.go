package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/seantiz/runbroker/internal/engine"
	"github.com/seantiz/runbroker/internal/model"
)

// legacyRunRequest is the JSON body for POST /run-code. Languages are named
// by runtime id.
type legacyRunRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

// legacyRunResponse is the JSON response for POST /run-code.
type legacyRunResponse struct {
	Output string `json:"output"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req model.ExecutionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out := s.engine.Execute(r.Context(), req)
	s.writeJSON(w, outcomeStatus(out), out)
}

func (s *Server) handleLegacyRun(w http.ResponseWriter, r *http.Request) {
	var req legacyRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, legacyRunResponse{Output: "invalid JSON body"})
		return
	}

	if req.LanguageID == 0 || req.SourceCode == "" {
		s.writeJSON(w, http.StatusBadRequest, legacyRunResponse{Output: engine.MissingFieldsText})
		return
	}

	binding, ok := s.registry.BindingByRuntimeID(req.LanguageID)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, legacyRunResponse{
			Output: engine.UnsupportedLangText + strconv.Itoa(req.LanguageID),
		})
		return
	}

	out := s.engine.Execute(r.Context(), model.ExecutionRequest{
		LanguageKey: binding.Key,
		SourceCode:  req.SourceCode,
		Stdin:       req.Stdin,
	})

	status := http.StatusOK
	switch {
	case out.Failure == model.FailureValidation:
		status = http.StatusBadRequest
	case out.Failed():
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, legacyRunResponse{Output: out.Text})
}

// outcomeStatus maps an outcome to the HTTP status of POST /v1/run. Program
// errors are successful broker calls and return 200.
func outcomeStatus(out model.ExecutionOutcome) int {
	switch out.Failure {
	case "":
		return http.StatusOK
	case model.FailureValidation:
		return http.StatusBadRequest
	case model.FailurePollTimeout:
		return http.StatusGatewayTimeout
	case model.FailureAbandoned:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
