package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/runbroker/internal/model"
)

// Driver is the interface that every runner protocol driver implements.
type Driver interface {
	// Run executes req on a remote runner using the runtime described by
	// binding. On failure the returned error is a *DriverError.
	Run(ctx context.Context, binding model.LanguageBinding, req model.ExecutionRequest) (RawResponse, error)

	// Name reports the driver kind (model.DriverMirror or model.DriverPoll).
	Name() string
}

// RawResponse is the closed set of backend response shapes. The concrete type
// is either *MirrorResponse or *PollResponse.
type RawResponse interface {
	// ServedBy returns the endpoint that produced the response.
	ServedBy() string

	rawResponse()
}

// MirrorStage is the run stage of a mirrored-synchronous response.
type MirrorStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

// MirrorResponse is a structurally valid mirrored-synchronous response.
type MirrorResponse struct {
	Endpoint string
	Language string
	Version  string
	Run      MirrorStage
}

// ServedBy implements RawResponse.
func (r *MirrorResponse) ServedBy() string { return r.Endpoint }

func (*MirrorResponse) rawResponse() {}

// Submit-and-poll status ids.
const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3

	// MaxNonTerminalStatus is the highest non-terminal status id.
	MaxNonTerminalStatus = StatusProcessing

	// firstErroredStatus is the lowest status id reported for runner-side
	// internal errors rather than program failures.
	firstErroredStatus = 13
)

// Submission status names.
const (
	SubmissionQueued    = "queued"
	SubmissionRunning   = "running"
	SubmissionSucceeded = "succeeded"
	SubmissionFailed    = "failed"
	SubmissionErrored   = "errored"
)

// SubmissionStatus classifies a numeric status id.
func SubmissionStatus(id int) string {
	switch {
	case id <= StatusInQueue:
		return SubmissionQueued
	case id == StatusProcessing:
		return SubmissionRunning
	case id == StatusAccepted:
		return SubmissionSucceeded
	case id < firstErroredStatus:
		return SubmissionFailed
	default:
		return SubmissionErrored
	}
}

// Terminal reports whether a status id means the submission will not change
// state any further.
func Terminal(id int) bool {
	return id > MaxNonTerminalStatus
}

// PollResponse is the terminal state of a submit-and-poll submission. Output
// fields are nil when the runner reported null.
type PollResponse struct {
	Endpoint          string
	Token             string
	StatusID          int
	StatusDescription string
	Stdout            *string
	Stderr            *string
	CompileOutput     *string
}

// ServedBy implements RawResponse.
func (r *PollResponse) ServedBy() string { return r.Endpoint }

func (*PollResponse) rawResponse() {}

// Reason classifies a driver failure.
type Reason int

// Driver failure reasons.
const (
	ReasonAllEndpointsUnreachable Reason = iota + 1
	ReasonSubmitFailed
	ReasonPollTimeout
	ReasonAbandoned
)

func (r Reason) String() string {
	switch r {
	case ReasonAllEndpointsUnreachable:
		return "all endpoints unreachable"
	case ReasonSubmitFailed:
		return "submit failed"
	case ReasonPollTimeout:
		return "poll timeout"
	case ReasonAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// DriverError is returned by a Driver when no usable response was obtained.
type DriverError struct {
	Reason   Reason
	Endpoint string
	Err      error
}

func (e *DriverError) Error() string {
	if e.Err == nil {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err, or 0 if err is not a
// *DriverError.
func ReasonOf(err error) Reason {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Reason
	}
	return 0
}
