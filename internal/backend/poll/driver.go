// Package poll implements the submit-and-poll driver: a single runner that
// accepts a submission, returns an opaque token, and is then polled by token
// at a fixed cadence until the submission reaches a terminal status.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
)

// Defaults applied when the corresponding Config field is not positive.
const (
	DefaultCallTimeout = 10 * time.Second
	DefaultMaxAttempts = 15
	DefaultInterval    = time.Second
)

// Config configures a submit-and-poll driver.
type Config struct {
	// Endpoints lists runner base URLs; only the first one is used.
	Endpoints   []string
	AuthToken   string
	CallTimeout time.Duration
	MaxAttempts int
	Interval    time.Duration

	// HTTPClient is optional; http.DefaultClient is used when nil.
	HTTPClient *http.Client
}

// Compile-time interface satisfaction check.
var _ backend.Driver = (*Driver)(nil)

// Driver implements backend.Driver for submit-and-poll runners.
type Driver struct {
	endpoint    string
	header      http.Header
	timeout     time.Duration
	maxAttempts int
	interval    time.Duration
	client      *http.Client
	logger      *slog.Logger
}

// NewDriver creates a submit-and-poll driver.
func NewDriver(cfg Config, logger *slog.Logger) (*Driver, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("poll driver: no endpoints configured")
	}

	d := &Driver{
		endpoint:    cfg.Endpoints[0],
		header:      http.Header{},
		timeout:     cfg.CallTimeout,
		maxAttempts: cfg.MaxAttempts,
		interval:    cfg.Interval,
		client:      cfg.HTTPClient,
		logger:      logger,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultCallTimeout
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = DefaultMaxAttempts
	}
	if d.interval <= 0 {
		d.interval = DefaultInterval
	}
	if d.client == nil {
		d.client = http.DefaultClient
	}
	if cfg.AuthToken != "" {
		d.header.Set(AuthHeader, cfg.AuthToken)
	}
	return d, nil
}

// Name implements backend.Driver.
func (d *Driver) Name() string {
	return model.DriverPoll
}

// Run submits req and polls for its result. Polling stops at the first
// terminal status or after the attempt budget is spent.
func (d *Driver) Run(ctx context.Context, binding model.LanguageBinding, req model.ExecutionRequest) (backend.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &backend.DriverError{Reason: backend.ReasonAbandoned, Err: err}
	}

	token, err := d.submit(ctx, NewSubmitRequest(binding, req))
	if err != nil {
		d.logger.Warn("runner submit failed", "driver", model.DriverPoll, "endpoint", d.endpoint, "error", err)
		return nil, &backend.DriverError{Reason: backend.ReasonSubmitFailed, Endpoint: d.endpoint, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if !sleep(ctx, d.interval) {
			backend.ObservePollAttempts(attempt - 1)
			return nil, &backend.DriverError{Reason: backend.ReasonAbandoned, Endpoint: d.endpoint, Err: ctx.Err()}
		}

		sub, err := d.poll(ctx, token)
		if err != nil {
			lastErr = err
			d.logger.Warn("runner poll failed",
				"driver", model.DriverPoll,
				"endpoint", d.endpoint,
				"token", token,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		if backend.Terminal(sub.Status.ID) {
			backend.ObservePollAttempts(attempt)
			if sub.Message != nil && *sub.Message != "" {
				d.logger.Warn("runner reported a message",
					"driver", model.DriverPoll,
					"endpoint", d.endpoint,
					"token", token,
					"status", backend.SubmissionStatus(sub.Status.ID),
					"message", *sub.Message,
				)
			}
			return sub.toRaw(d.endpoint, token), nil
		}

		d.logger.Debug("submission not finished",
			"token", token,
			"attempt", attempt,
			"status", backend.SubmissionStatus(sub.Status.ID),
		)
	}

	backend.ObservePollAttempts(d.maxAttempts)
	d.logger.Error("submission did not finish within poll budget",
		"driver", model.DriverPoll,
		"endpoint", d.endpoint,
		"token", token,
		"attempts", d.maxAttempts,
	)
	timeoutErr := fmt.Errorf("no terminal status after %d attempts", d.maxAttempts)
	if lastErr != nil {
		timeoutErr = fmt.Errorf("%w (last poll error: %w)", timeoutErr, lastErr)
	}
	return nil, &backend.DriverError{Reason: backend.ReasonPollTimeout, Endpoint: d.endpoint, Err: timeoutErr}
}

func (d *Driver) submit(ctx context.Context, body SubmitRequest) (_ string, err error) {
	start := time.Now()
	defer func() {
		backend.ObserveCall(model.DriverPoll, d.endpoint, backend.CallSubmit, start, err)
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var out SubmitResponse
	if err := backend.DoJSON(callCtx, d.client, http.MethodPost, submitURL(d.endpoint), d.header, body, &out); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if out.Token == "" {
		return "", ErrEmptyToken
	}
	return out.Token, nil
}

func (d *Driver) poll(ctx context.Context, token string) (_ *SubmissionResponse, err error) {
	start := time.Now()
	defer func() {
		backend.ObserveCall(model.DriverPoll, d.endpoint, backend.CallPoll, start, err)
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var out SubmissionResponse
	if err := backend.DoJSON(callCtx, d.client, http.MethodGet, pollURL(d.endpoint, token), d.header, nil, &out); err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	if out.Status == nil || out.Status.ID == 0 {
		return nil, ErrMissingStatus
	}
	return &out, nil
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
