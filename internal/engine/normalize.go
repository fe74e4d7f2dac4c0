package engine

import (
	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
)

// Outcome texts.
const (
	NoOutputText         = "No output"
	compileErrorPrefix   = "Compilation Error:\n"
	runtimeErrorPrefix   = "Runtime Error:\n"
	UnreachableText      = "Code execution failed (all runner endpoints unreachable)"
	SubmitFailedText     = "Code execution failed (submission rejected by runner)"
	PollTimeoutText      = "Code execution timed out (runner did not finish within the poll budget)"
	AbandonedText        = "Code execution abandoned (request cancelled by caller)"
	MissingFieldsText    = "Missing fields"
	UnsupportedLangText  = "Unsupported language: "
	sourceTooLargeFormat = "Source code exceeds %d bytes"
)

// output is the common shape both response families are reduced to.
type output struct {
	stdout        string
	stderr        string
	compileOutput string
}

// Normalize converts a driver result into a canonical outcome. It has no
// side effects: equal inputs always produce equal outcomes.
func Normalize(raw backend.RawResponse, err error) model.ExecutionOutcome {
	if err != nil {
		return failureOutcome(backend.ReasonOf(err))
	}

	var out output
	switch r := raw.(type) {
	case *backend.MirrorResponse:
		// Mirrored runners never report a separate compile stage.
		out = output{stdout: r.Run.Stdout, stderr: r.Run.Stderr}
	case *backend.PollResponse:
		out = output{
			stdout:        deref(r.Stdout),
			stderr:        deref(r.Stderr),
			compileOutput: deref(r.CompileOutput),
		}
	}

	switch {
	case out.stdout != "":
		return model.ExecutionOutcome{Kind: model.KindStdOut, Text: out.stdout}
	case out.compileOutput != "":
		return model.ExecutionOutcome{Kind: model.KindCompileError, Text: compileErrorPrefix + out.compileOutput}
	case out.stderr != "":
		return model.ExecutionOutcome{Kind: model.KindRuntimeError, Text: runtimeErrorPrefix + out.stderr}
	default:
		return model.ExecutionOutcome{Kind: model.KindNoOutput, Text: NoOutputText}
	}
}

func failureOutcome(reason backend.Reason) model.ExecutionOutcome {
	switch reason {
	case backend.ReasonSubmitFailed:
		return brokerFailure(model.FailureSubmitFailed, SubmitFailedText)
	case backend.ReasonPollTimeout:
		return brokerFailure(model.FailurePollTimeout, PollTimeoutText)
	case backend.ReasonAbandoned:
		return brokerFailure(model.FailureAbandoned, AbandonedText)
	default:
		return brokerFailure(model.FailureUnreachable, UnreachableText)
	}
}

func brokerFailure(failure, text string) model.ExecutionOutcome {
	return model.ExecutionOutcome{Kind: model.KindBrokerFailure, Failure: failure, Text: text}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
