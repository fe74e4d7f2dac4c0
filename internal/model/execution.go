package model

import "time"

// Outcome kind constants.
const (
	KindStdOut        = "stdout"
	KindRuntimeError  = "runtime_error"
	KindCompileError  = "compile_error"
	KindNoOutput      = "no_output"
	KindBrokerFailure = "broker_failure"
)

// Failure reason constants. A reason is only set when the outcome kind is
// KindBrokerFailure.
const (
	FailureValidation   = "validation"
	FailureUnreachable  = "unreachable"
	FailureSubmitFailed = "submit_failed"
	FailurePollTimeout  = "poll_timeout"
	FailureAbandoned    = "abandoned"
)

// Driver constants select the backend protocol family.
const (
	DriverMirror = "mirror"
	DriverPoll   = "poll"
)

// ExecutionRequest is a single "run this code" request.
type ExecutionRequest struct {
	LanguageKey string `json:"languageKey" validate:"required"`
	SourceCode  string `json:"sourceCode" validate:"required"`
	Stdin       string `json:"stdin"`
}

// ExecutionOutcome is the canonical result of an execution, independent of
// which backend served it.
type ExecutionOutcome struct {
	Text    string `json:"text"`
	Kind    string `json:"kind"`
	Failure string `json:"failure,omitempty"`
}

// Failed reports whether the outcome is a broker failure.
func (o ExecutionOutcome) Failed() bool {
	return o.Kind == KindBrokerFailure
}

// AuditRecord is the write-once record of a completed execution.
type AuditRecord struct {
	ID          string    `json:"id"`
	LanguageKey string    `json:"language_key"`
	RuntimeID   int       `json:"runtime_id"`
	Driver      string    `json:"driver"`
	Endpoint    string    `json:"endpoint,omitempty"`
	SourceCode  string    `json:"source_code"`
	Stdin       string    `json:"stdin"`
	OutcomeText string    `json:"outcome_text"`
	OutcomeKind string    `json:"outcome_kind"`
	DurationMS  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
