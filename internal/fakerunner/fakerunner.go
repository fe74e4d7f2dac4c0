// Package fakerunner serves local stand-ins for both runner protocols so the
// broker can be exercised end to end without a real code-execution service.
//
// Programs are not executed. The runner echoes stdin back as stdout, and the
// source code may contain directives that select another result:
//
//	FAKE_COMPILE_ERROR  compile output (submit-and-poll) or stderr (mirrored)
//	FAKE_RUNTIME_ERROR  stderr
//	FAKE_STDOUT=<text>  the rest of the line is returned as stdout
package fakerunner

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/backend/mirror"
	"github.com/seantiz/runbroker/internal/backend/poll"
	"github.com/seantiz/runbroker/internal/model"
)

// Source directives.
const (
	DirectiveCompileError = "FAKE_COMPILE_ERROR"
	DirectiveRuntimeError = "FAKE_RUNTIME_ERROR"
	DirectiveStdout       = "FAKE_STDOUT="
)

// Submit-and-poll status ids used by the fake.
const (
	statusCompileError = 6
	statusRuntimeError = 11
)

// Options tune the fake runner.
type Options struct {
	// Delay is applied before every mirrored execute answer.
	Delay time.Duration

	// PendingPolls is how many polls report a non-terminal status before
	// the result is released.
	PendingPolls int

	// Unavailable makes every request fail with 503.
	Unavailable bool

	// AuthToken, when set, is required on submit-and-poll requests.
	AuthToken string
}

// result is the outcome the fake decided on for one program.
type result struct {
	stdout        string
	stderr        string
	compileOutput string
}

func evaluate(source, stdin string) result {
	switch {
	case strings.Contains(source, DirectiveCompileError):
		return result{compileOutput: "main: error: fake compile error\n"}
	case strings.Contains(source, DirectiveRuntimeError):
		return result{stderr: "fake runtime error\n"}
	}
	if i := strings.Index(source, DirectiveStdout); i >= 0 {
		line := source[i+len(DirectiveStdout):]
		if j := strings.IndexByte(line, '\n'); j >= 0 {
			line = line[:j]
		}
		return result{stdout: line + "\n"}
	}
	return result{stdout: stdin}
}

// Runner serves both protocols. It is safe for concurrent use.
type Runner struct {
	opts      Options
	languages map[string]bool
	ids       map[int]bool

	mu          sync.Mutex
	submissions map[string]*submission
}

type submission struct {
	polls  int
	result result
}

// New creates a fake runner that accepts the given languages.
func New(opts Options, bindings []model.LanguageBinding) *Runner {
	r := &Runner{
		opts:        opts,
		languages:   make(map[string]bool, len(bindings)),
		ids:         make(map[int]bool, len(bindings)),
		submissions: make(map[string]*submission),
	}
	for _, b := range bindings {
		r.languages[b.RuntimeName] = true
		r.ids[b.RuntimeID] = true
	}
	return r
}

// Handler returns a router serving the mirrored execute endpoint at
// /api/v2/execute and the submit-and-poll endpoints under /submissions.
func (r *Runner) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(r.availability)

	router.Post("/api/v2/execute", r.handleExecute)

	router.Group(func(g chi.Router) {
		g.Use(r.authenticate)
		g.Post("/submissions", r.handleSubmit)
		g.Get("/submissions/{token}", r.handlePoll)
	})
	return router
}

func (r *Runner) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.opts.Unavailable {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "runner unavailable"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Runner) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.opts.AuthToken != "" && req.Header.Get(poll.AuthHeader) != r.opts.AuthToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Runner) handleExecute(w http.ResponseWriter, req *http.Request) {
	var body mirror.ExecuteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if !r.languages[body.Language] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": body.Language + "-" + body.Version + " runtime is unknown"})
		return
	}

	if r.opts.Delay > 0 {
		select {
		case <-time.After(r.opts.Delay):
		case <-req.Context().Done():
			return
		}
	}

	var source string
	if len(body.Files) > 0 {
		source = body.Files[0].Content
	}
	res := evaluate(source, body.Stdin)

	// Mirrored runners fold compile failures into the run stage's stderr.
	stderr := res.stderr + res.compileOutput
	code := 0
	if stderr != "" {
		code = 1
	}

	writeJSON(w, http.StatusOK, mirror.ExecuteResponse{
		Language: body.Language,
		Version:  "0.0.0-fake",
		Run: &backend.MirrorStage{
			Stdout: res.stdout,
			Stderr: stderr,
			Output: res.stdout + stderr,
			Code:   &code,
		},
	})
}

func (r *Runner) handleSubmit(w http.ResponseWriter, req *http.Request) {
	var body poll.SubmitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !r.ids[body.LanguageID] {
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"language_id": {"language with this id does not exist"}})
		return
	}

	token := model.NewID()
	r.mu.Lock()
	r.submissions[token] = &submission{result: evaluate(body.SourceCode, body.Stdin)}
	r.mu.Unlock()

	writeJSON(w, http.StatusCreated, poll.SubmitResponse{Token: token})
}

func (r *Runner) handlePoll(w http.ResponseWriter, req *http.Request) {
	token := chi.URLParam(req, "token")

	r.mu.Lock()
	sub, ok := r.submissions[token]
	var polls int
	if ok {
		sub.polls++
		polls = sub.polls
	}
	r.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "submission not found"})
		return
	}

	if polls <= r.opts.PendingPolls {
		id := backend.StatusInQueue
		if polls > 1 {
			id = backend.StatusProcessing
		}
		writeJSON(w, http.StatusOK, poll.SubmissionResponse{
			Token:  token,
			Status: &poll.Status{ID: id, Description: backend.SubmissionStatus(id)},
		})
		return
	}

	writeJSON(w, http.StatusOK, finished(token, sub.result))
}

func finished(token string, res result) poll.SubmissionResponse {
	resp := poll.SubmissionResponse{Token: token}
	id := backend.StatusAccepted
	switch {
	case res.compileOutput != "":
		id = statusCompileError
		resp.CompileOutput = &res.compileOutput
	case res.stderr != "":
		id = statusRuntimeError
		resp.Stderr = &res.stderr
	}
	if res.stdout != "" {
		resp.Stdout = &res.stdout
	}
	resp.Status = &poll.Status{ID: id, Description: backend.SubmissionStatus(id)}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
