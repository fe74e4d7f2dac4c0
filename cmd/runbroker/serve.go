package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/runbroker/internal/api"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the broker HTTP API.

Examples:
  runbroker serve
  RUNBROKER_DRIVER=poll runbroker serve --listen :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	b, err := openBroker(os.Stdout)
	if err != nil {
		return err
	}
	defer b.close()

	addr := b.cfg.ListenAddr
	if listenFlag != "" {
		addr = listenFlag
	}

	var limiter *api.IPRateLimiter
	if b.cfg.RateLimitRPS > 0 {
		limiter = api.NewIPRateLimiter(b.cfg.RateLimitRPS, b.cfg.RateLimitBurst, b.cfg.RateLimitTrustProxy)
	}

	b.logger.Info("runbroker: starting",
		"listen_addr", addr,
		"db_path", b.cfg.DBPath,
		"driver", b.cfg.Driver,
	)

	srv := api.NewServer(addr, b.store, b.registry, b.engine, limiter, b.logger)
	srv.SetRunBudget(b.cfg.RunBudget())
	return srv.Run()
}
