package poll

import (
	"errors"
	"net/url"
	"strings"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
)

// Query parameters and paths of the submit-and-poll runner API.
const (
	submissionsPath = "/submissions"
	submitQuery     = "?base64_encoded=false&wait=false"
	pollQuery       = "?base64_encoded=false&fields=token,stdout,stderr,compile_output,message,status"

	// AuthHeader carries the runner's authentication token when configured.
	AuthHeader = "X-Auth-Token"
)

var (
	// ErrEmptyToken is returned when a submit response carries no token.
	ErrEmptyToken = errors.New("submit response has no token")

	// ErrMissingStatus is returned when a poll response carries no status.
	ErrMissingStatus = errors.New("poll response has no status")
)

// SubmitRequest is the JSON body of a submission.
type SubmitRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

// SubmitResponse is the runner's answer to a submission.
type SubmitResponse struct {
	Token string `json:"token"`
}

// Status is the numeric status of a submission.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// SubmissionResponse is the runner's answer to a poll. Output fields are nil
// when the runner reports null.
type SubmissionResponse struct {
	Token         string  `json:"token"`
	Status        *Status `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
}

// NewSubmitRequest builds the wire request for req using the binding's
// runtime id.
func NewSubmitRequest(binding model.LanguageBinding, req model.ExecutionRequest) SubmitRequest {
	return SubmitRequest{
		LanguageID: binding.RuntimeID,
		SourceCode: req.SourceCode,
		Stdin:      req.Stdin,
	}
}

func submitURL(base string) string {
	return strings.TrimRight(base, "/") + submissionsPath + submitQuery
}

func pollURL(base, token string) string {
	return strings.TrimRight(base, "/") + submissionsPath + "/" + url.PathEscape(token) + pollQuery
}

func (r *SubmissionResponse) toRaw(endpoint, token string) *backend.PollResponse {
	return &backend.PollResponse{
		Endpoint:          endpoint,
		Token:             token,
		StatusID:          r.Status.ID,
		StatusDescription: r.Status.Description,
		Stdout:            r.Stdout,
		Stderr:            r.Stderr,
		CompileOutput:     r.CompileOutput,
	}
}
