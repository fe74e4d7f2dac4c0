package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/model"
	"github.com/seantiz/runbroker/internal/store"
)

// Defaults applied when the corresponding Config field is not positive.
const (
	DefaultMaxSourceBytes = 64 << 10
	DefaultAuditTimeout   = 5 * time.Second
)

// Config tunes the engine.
type Config struct {
	MaxSourceBytes int
	AuditTimeout   time.Duration
}

// Engine is the execution broker. It is safe for concurrent use; executions
// share only the immutable registry and the audit scheduling gate.
type Engine struct {
	driver   backend.Driver
	registry *backend.Registry
	sink     store.AuditSink
	logger   *slog.Logger
	validate *validator.Validate

	maxSourceBytes int
	auditTimeout   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates an engine that sends every execution through driver.
func NewEngine(driver backend.Driver, reg *backend.Registry, sink store.AuditSink, cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		driver:         driver,
		registry:       reg,
		sink:           sink,
		logger:         logger,
		validate:       validator.New(),
		maxSourceBytes: cfg.MaxSourceBytes,
		auditTimeout:   cfg.AuditTimeout,
	}
	if e.maxSourceBytes <= 0 {
		e.maxSourceBytes = DefaultMaxSourceBytes
	}
	if e.auditTimeout <= 0 {
		e.auditTimeout = DefaultAuditTimeout
	}
	return e
}

// DriverName reports the active driver kind.
func (e *Engine) DriverName() string {
	return e.driver.Name()
}

// Execute runs req and returns its canonical outcome. It never returns an
// error: every failure mode is expressed as an outcome.
func (e *Engine) Execute(ctx context.Context, req model.ExecutionRequest) model.ExecutionOutcome {
	binding, outcome, ok := e.check(req)
	if !ok {
		executionsTotal.WithLabelValues(e.driver.Name(), outcome.Kind, outcome.Failure).Inc()
		e.logger.Info("execution rejected",
			"language", req.LanguageKey,
			"reason", outcome.Text,
		)
		return outcome
	}

	start := time.Now()
	raw, err := e.driver.Run(ctx, binding, req)
	outcome = Normalize(raw, err)
	elapsed := time.Since(start)

	executionsTotal.WithLabelValues(e.driver.Name(), outcome.Kind, outcome.Failure).Inc()
	executionDuration.WithLabelValues(e.driver.Name()).Observe(elapsed.Seconds())

	var endpoint string
	var de *backend.DriverError
	switch {
	case raw != nil:
		endpoint = raw.ServedBy()
	case errors.As(err, &de):
		endpoint = de.Endpoint
	}

	if outcome.Failure == model.FailureAbandoned {
		// Nothing came back from a runner, so there is nothing to audit.
		e.logger.Warn("execution abandoned by caller",
			"language", req.LanguageKey,
			"driver", e.driver.Name(),
			"error", err,
		)
		return outcome
	}

	if err != nil {
		e.logger.Error("execution failed",
			"language", req.LanguageKey,
			"driver", e.driver.Name(),
			"failure", outcome.Failure,
			"error", err,
		)
	} else {
		e.logger.Info("execution finished",
			"language", req.LanguageKey,
			"driver", e.driver.Name(),
			"endpoint", endpoint,
			"kind", outcome.Kind,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	rec := &model.AuditRecord{
		ID:          model.NewID(),
		LanguageKey: req.LanguageKey,
		RuntimeID:   binding.RuntimeID,
		Driver:      e.driver.Name(),
		Endpoint:    endpoint,
		SourceCode:  req.SourceCode,
		Stdin:       req.Stdin,
		OutcomeText: outcome.Text,
		OutcomeKind: outcome.Kind,
		DurationMS:  int(elapsed.Milliseconds()),
		CreatedAt:   time.Now().UTC(),
	}
	e.scheduleAudit(rec)

	return outcome
}

// scheduleAudit writes rec in the background unless the engine is closed.
// Scheduling under mu keeps every wg.Go ordered before Close's wg.Wait.
func (e *Engine) scheduleAudit(rec *model.AuditRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		auditWriteFailures.Inc()
		e.logger.Warn("dropping audit record after close",
			"execution_id", rec.ID,
			"language", rec.LanguageKey,
		)
		return
	}
	e.wg.Go(func() {
		e.appendAudit(rec)
	})
}

// Wait blocks until all pending audit writes complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops scheduling audit writes and waits for pending ones. Executions
// still in flight keep returning outcomes; their records are dropped. The
// audit sink may be closed once Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
}

// check validates req and resolves its binding. On failure it returns the
// validation outcome and false.
func (e *Engine) check(req model.ExecutionRequest) (model.LanguageBinding, model.ExecutionOutcome, bool) {
	if err := e.validate.Struct(req); err != nil {
		return model.LanguageBinding{}, brokerFailure(model.FailureValidation, MissingFieldsText), false
	}

	binding, ok := e.registry.Binding(req.LanguageKey)
	if !ok {
		return model.LanguageBinding{}, brokerFailure(model.FailureValidation, UnsupportedLangText+req.LanguageKey), false
	}

	if len(req.SourceCode) > e.maxSourceBytes {
		return model.LanguageBinding{}, brokerFailure(model.FailureValidation, fmt.Sprintf(sourceTooLargeFormat, e.maxSourceBytes)), false
	}

	return binding, model.ExecutionOutcome{}, true
}

// appendAudit writes rec with its own deadline. Failures are logged and
// counted, never propagated.
func (e *Engine) appendAudit(rec *model.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), e.auditTimeout)
	defer cancel()

	if err := e.sink.Append(ctx, rec); err != nil {
		auditWriteFailures.Inc()
		e.logger.Error("failed to write audit record",
			"execution_id", rec.ID,
			"language", rec.LanguageKey,
			"error", err,
		)
	}
}
