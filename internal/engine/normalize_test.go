package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
)

func strPtr(s string) *string { return &s }

func TestNormalizeMirror(t *testing.T) {
	tests := []struct {
		name     string
		stage    backend.MirrorStage
		wantKind string
		wantText string
	}{
		{"stdout", backend.MirrorStage{Stdout: "42\n"}, model.KindStdOut, "42\n"},
		{"stdout wins over stderr", backend.MirrorStage{Stdout: "ok", Stderr: "warn"}, model.KindStdOut, "ok"},
		{"stderr only", backend.MirrorStage{Stderr: "Traceback"}, model.KindRuntimeError, "Runtime Error:\nTraceback"},
		{"empty", backend.MirrorStage{}, model.KindNoOutput, NoOutputText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(&backend.MirrorResponse{Endpoint: "http://m", Run: tt.stage}, nil)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Failed() {
				t.Error("successful run reported as failure")
			}
		})
	}
}

func TestNormalizePoll(t *testing.T) {
	tests := []struct {
		name     string
		resp     backend.PollResponse
		wantKind string
		wantText string
	}{
		{
			name:     "stdout",
			resp:     backend.PollResponse{StatusID: 3, Stdout: strPtr("hi")},
			wantKind: model.KindStdOut,
			wantText: "hi",
		},
		{
			name:     "compile output beats stderr",
			resp:     backend.PollResponse{StatusID: 6, CompileOutput: strPtr("syntax"), Stderr: strPtr("noise")},
			wantKind: model.KindCompileError,
			wantText: "Compilation Error:\nsyntax",
		},
		{
			name:     "stdout beats compile output",
			resp:     backend.PollResponse{StatusID: 3, Stdout: strPtr("out"), CompileOutput: strPtr("warning")},
			wantKind: model.KindStdOut,
			wantText: "out",
		},
		{
			name:     "stderr",
			resp:     backend.PollResponse{StatusID: 11, Stderr: strPtr("segfault")},
			wantKind: model.KindRuntimeError,
			wantText: "Runtime Error:\nsegfault",
		},
		{
			name:     "null fields",
			resp:     backend.PollResponse{StatusID: 3},
			wantKind: model.KindNoOutput,
			wantText: NoOutputText,
		},
		{
			name:     "empty strings are absent",
			resp:     backend.PollResponse{StatusID: 3, Stdout: strPtr(""), Stderr: strPtr("")},
			wantKind: model.KindNoOutput,
			wantText: NoOutputText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			got := Normalize(&resp, nil)
			if got.Kind != tt.wantKind || got.Text != tt.wantText {
				t.Errorf("Normalize = {%q %q}, want {%q %q}", got.Kind, got.Text, tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestNormalizeDriverErrors(t *testing.T) {
	tests := []struct {
		reason      backend.Reason
		wantFailure string
		wantText    string
	}{
		{backend.ReasonAllEndpointsUnreachable, model.FailureUnreachable, UnreachableText},
		{backend.ReasonSubmitFailed, model.FailureSubmitFailed, SubmitFailedText},
		{backend.ReasonPollTimeout, model.FailurePollTimeout, PollTimeoutText},
		{backend.ReasonAbandoned, model.FailureAbandoned, AbandonedText},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &backend.DriverError{Reason: tt.reason, Err: errors.New("boom")})
			got := Normalize(nil, err)
			if got.Kind != model.KindBrokerFailure {
				t.Errorf("Kind = %q, want broker failure", got.Kind)
			}
			if got.Failure != tt.wantFailure {
				t.Errorf("Failure = %q, want %q", got.Failure, tt.wantFailure)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
		})
	}
}

func TestNormalizeUntypedErrorIsUnreachable(t *testing.T) {
	got := Normalize(nil, context.DeadlineExceeded)
	if got.Failure != model.FailureUnreachable {
		t.Errorf("Failure = %q, want %q", got.Failure, model.FailureUnreachable)
	}
}

func TestFailureTextsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, text := range []string{UnreachableText, SubmitFailedText, PollTimeoutText, AbandonedText, NoOutputText} {
		if seen[text] {
			t.Errorf("duplicate outcome text %q", text)
		}
		seen[text] = true
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := &backend.PollResponse{StatusID: 6, CompileOutput: strPtr("err")}
	first := Normalize(raw, nil)
	for i := 0; i < 5; i++ {
		if got := Normalize(raw, nil); got != first {
			t.Fatalf("Normalize call %d = %+v, want %+v", i, got, first)
		}
	}
	if *raw.CompileOutput != "err" {
		t.Error("Normalize mutated its input")
	}
}
