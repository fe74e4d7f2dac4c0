package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/seantiz/runbroker/internal/backend"
	"github.com/seantiz/runbroker/internal/config"
	"github.com/seantiz/runbroker/internal/engine"
	"github.com/seantiz/runbroker/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "runbroker",
	Short: "Runbroker - execution broker for remote code runners",
	Long: `Runbroker accepts "run this code" requests, forwards them to a remote
code-execution service, and returns a normalized result.

Two runner protocols are supported: mirrored runners answered synchronously
with fail-over across endpoints, and a submit-and-poll runner. Every execution
that reaches a runner is recorded in the audit store.

Configuration is read from .env, the YAML file named by RUNBROKER_CONFIG, and
RUNBROKER_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// broker bundles the components every subcommand needs.
type broker struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.SQLiteStore
	registry *backend.Registry
	engine   *engine.Engine
}

// openBroker loads configuration and wires the store, registry, driver and
// engine. Callers must call close when done.
func openBroker(logOut io.Writer) (*broker, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger := config.NewLogger(logOut, cfg.LogLevel)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	reg, err := engine.NewRegistry(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building registry: %w", err)
	}

	driver, err := engine.NewDriver(cfg, reg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("building driver: %w", err)
	}

	eng := engine.NewEngine(driver, reg, db, engine.Config{MaxSourceBytes: cfg.MaxSourceBytes}, logger)

	return &broker{cfg: cfg, logger: logger, store: db, registry: reg, engine: eng}, nil
}

// close drains pending audit writes before closing the store. Executions that
// outlive it no longer write to the store.
func (b *broker) close() {
	b.engine.Close()
	b.store.Close()
}
