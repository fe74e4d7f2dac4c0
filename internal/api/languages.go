package api

import (
	"net/http"

	"github.com/seantiz/runbroker/internal/model"
)

// languagesResponse is the JSON response for GET /v1/languages.
type languagesResponse struct {
	Driver    string                  `json:"driver"`
	Endpoints []string                `json:"endpoints"`
	Languages []model.LanguageBinding `json:"languages"`
}

func (s *Server) handleListLanguages(w http.ResponseWriter, _ *http.Request) {
	driver := s.engine.DriverName()
	s.writeJSON(w, http.StatusOK, languagesResponse{
		Driver:    driver,
		Endpoints: s.registry.Endpoints(driver),
		Languages: s.registry.Languages(),
	})
}
