package engine

import (
	"fmt"
	"log/slog"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/backend/mirror"
	"github.com/seantiz/runbroker/internal/backend/poll"
	"github.com/seantiz/runbroker/internal/config"
	"github.com/seantiz/runbroker/internal/model"
)

// NewRegistry builds the endpoint registry from configuration and the
// built-in language table.
func NewRegistry(cfg config.Config) (*backend.Registry, error) {
	return backend.NewRegistry(map[string][]string{
		model.DriverMirror: cfg.MirrorEndpoints,
		model.DriverPoll:   cfg.PollEndpoints,
	}, model.DefaultBindings())
}

// NewDriver constructs the driver selected by cfg.Driver, drawing its
// endpoints from reg.
func NewDriver(cfg config.Config, reg *backend.Registry, logger *slog.Logger) (backend.Driver, error) {
	switch cfg.Driver {
	case model.DriverMirror:
		d, err := mirror.NewDriver(mirror.Config{
			Endpoints:   reg.Endpoints(model.DriverMirror),
			CallTimeout: cfg.CallTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case model.DriverPoll:
		d, err := poll.NewDriver(poll.Config{
			Endpoints:   reg.Endpoints(model.DriverPoll),
			AuthToken:   cfg.PollAuthToken,
			CallTimeout: cfg.CallTimeout,
			MaxAttempts: cfg.PollMaxAttempts,
			Interval:    cfg.PollInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}
