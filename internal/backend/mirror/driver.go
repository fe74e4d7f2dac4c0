// Package mirror implements the mirrored-synchronous driver: a fixed,
// priority-ordered list of interchangeable runners, each executing code in a
// single request/response round trip.
package mirror

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

// DefaultCallTimeout bounds a single execute call when none is configured.
const DefaultCallTimeout = 10 * time.Second

// Config configures a mirrored-synchronous driver.
type Config struct {
	// Endpoints are execute URLs in priority order.
	Endpoints   []string
	CallTimeout time.Duration

	// HTTPClient is optional; http.DefaultClient is used when nil.
	HTTPClient *http.Client
}

// Compile-time interface satisfaction check.
var _ backend.Driver = (*Driver)(nil)

// Driver implements backend.Driver for mirrored-synchronous runners.
type Driver struct {
	endpoints []string
	timeout   time.Duration
	client    *http.Client
	logger    *slog.Logger
}

// NewDriver creates a mirrored-synchronous driver.
func NewDriver(cfg Config, logger *slog.Logger) (*Driver, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("mirror driver: no endpoints configured")
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Driver{
		endpoints: append([]string(nil), cfg.Endpoints...),
		timeout:   timeout,
		client:    client,
		logger:    logger,
	}, nil
}

// Name implements backend.Driver.
func (d *Driver) Name() string {
	return model.DriverMirror
}

// Run tries each endpoint once, in order, and returns the first structurally
// valid response. Endpoints are never retried or raced.
func (d *Driver) Run(ctx context.Context, binding model.LanguageBinding, req model.ExecutionRequest) (backend.RawResponse, error) {
	body := NewExecuteRequest(binding, req)

	var lastErr error
	var lastEndpoint string
	for i, endpoint := range d.endpoints {
		// The caller only gets to stop us between calls, never during one.
		if err := ctx.Err(); err != nil {
			return nil, &backend.DriverError{Reason: backend.ReasonAbandoned, Endpoint: lastEndpoint, Err: err}
		}

		resp, err := d.execute(ctx, endpoint, body)
		if err == nil {
			if i > 0 {
				d.logger.Info("runner fail-over succeeded", "driver", model.DriverMirror, "endpoint", endpoint, "attempt", i+1)
			}
			return resp, nil
		}

		lastErr = err
		lastEndpoint = endpoint
		d.logger.Warn("runner endpoint failed",
			"driver", model.DriverMirror,
			"endpoint", endpoint,
			"attempt", i+1,
			"error", err,
		)
	}

	d.logger.Error("all runner endpoints failed", "driver", model.DriverMirror, "endpoints", len(d.endpoints))
	return nil, &backend.DriverError{
		Reason:   backend.ReasonAllEndpointsUnreachable,
		Endpoint: lastEndpoint,
		Err:      lastErr,
	}
}

// execute performs one call against one endpoint under its own timeout. The
// call is detached from caller cancellation.
func (d *Driver) execute(ctx context.Context, endpoint string, body ExecuteRequest) (_ *backend.MirrorResponse, err error) {
	start := time.Now()
	defer func() {
		backend.ObserveCall(model.DriverMirror, endpoint, backend.CallExecute, start, err)
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var out ExecuteResponse
	if err := backend.DoJSON(callCtx, d.client, http.MethodPost, endpoint, nil, body, &out); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return out.toRaw(endpoint)
}
