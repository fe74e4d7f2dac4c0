package mirror

import (
	"errors"
	"fmt"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
)

// AnyVersion asks the runner for any installed version of the runtime.
const AnyVersion = "*"

// ErrMissingRun is returned when a 2xx response carries no run stage.
var ErrMissingRun = errors.New("response has no run stage")

// File is one source file in an execute request.
type File struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ExecuteRequest is the JSON body POSTed to a mirrored runner.
type ExecuteRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []File `json:"files"`
	Stdin    string `json:"stdin"`
}

// ExecuteResponse is the JSON body returned by a mirrored runner. Run is nil
// when the runner rejected the request.
type ExecuteResponse struct {
	Language string               `json:"language"`
	Version  string               `json:"version"`
	Run      *backend.MirrorStage `json:"run"`
	Message  string               `json:"message,omitempty"`
}

// NewExecuteRequest builds the wire request for req using the binding's
// runtime name.
func NewExecuteRequest(binding model.LanguageBinding, req model.ExecutionRequest) ExecuteRequest {
	return ExecuteRequest{
		Language: binding.RuntimeName,
		Version:  AnyVersion,
		Files:    []File{{Content: req.SourceCode}},
		Stdin:    req.Stdin,
	}
}

// toRaw validates the response shape and converts it into the tagged raw
// response consumed by the normalizer.
func (r *ExecuteResponse) toRaw(endpoint string) (*backend.MirrorResponse, error) {
	if r.Run == nil {
		if r.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingRun, r.Message)
		}
		return nil, ErrMissingRun
	}
	return &backend.MirrorResponse{
		Endpoint: endpoint,
		Language: r.Language,
		Version:  r.Version,
		Run:      *r.Run,
	}, nil
}
