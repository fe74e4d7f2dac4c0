// fakerunner serves local stand-ins for the mirrored and submit-and-poll
// runner protocols for development and end-to-end testing.
// Usage: go run ./cmd/fakerunner --listen :2000
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/seantiz/runbroker/internal/config"
	"github.com/seantiz/runbroker/internal/fakerunner"
	"github.com/seantiz/runbroker/internal/model"
)

var (
	listenFlag       string
	delayFlag        time.Duration
	pendingPollsFlag int
	unavailableFlag  bool
	authTokenFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "fakerunner",
	Short: "Serve fake mirrored and submit-and-poll runners",
	Long: `Serve fake code runners on one address:

  POST /api/v2/execute          mirrored-synchronous execute
  POST /submissions             submit-and-poll submit
  GET  /submissions/{token}     submit-and-poll poll

Programs are not executed. Stdin is echoed back as stdout unless the source
contains FAKE_COMPILE_ERROR, FAKE_RUNTIME_ERROR or FAKE_STDOUT=<text>.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&listenFlag, "listen", ":2000", "Listen address")
	rootCmd.Flags().DurationVar(&delayFlag, "delay", 0, "Delay before each mirrored answer")
	rootCmd.Flags().IntVar(&pendingPollsFlag, "pending-polls", 2, "Polls answered with a non-terminal status before the result")
	rootCmd.Flags().BoolVar(&unavailableFlag, "unavailable", false, "Answer every request with 503")
	rootCmd.Flags().StringVar(&authTokenFlag, "auth-token", "", "Token required on submit-and-poll requests")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := config.NewLogger(os.Stdout, slog.LevelInfo)

	runner := fakerunner.New(fakerunner.Options{
		Delay:        delayFlag,
		PendingPolls: pendingPollsFlag,
		Unavailable:  unavailableFlag,
		AuthToken:    authTokenFlag,
	}, model.DefaultBindings())

	srv := &http.Server{
		Addr:              listenFlag,
		Handler:           middleware.Logger(runner.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("fakerunner: starting",
		"addr", listenFlag,
		"pending_polls", pendingPollsFlag,
		"unavailable", unavailableFlag,
	)
	return srv.ListenAndServe()
}
