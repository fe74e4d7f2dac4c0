package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent audited executions",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one audited execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of executions to list")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	b, err := openBroker(os.Stderr)
	if err != nil {
		return err
	}
	defer b.close()

	records, total, err := b.store.ListExecutions(cmd.Context(), historyLimitFlag, 0)
	if err != nil {
		return fmt.Errorf("listing executions: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No executions recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-28s %-12s %-16s %-8s %s\n", "ID", "LANGUAGE", "KIND", "MS", "CREATED")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, rec := range records {
		fmt.Fprintf(w, "%-28s %-12s %-16s %-8d %s\n",
			rec.ID, rec.LanguageKey, rec.OutcomeKind, rec.DurationMS,
			rec.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(w, "\n%d of %d execution(s)\n", len(records), total)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	b, err := openBroker(os.Stderr)
	if err != nil {
		return err
	}
	defer b.close()

	rec, err := b.store.GetExecution(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting execution: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:        %s\n", rec.ID)
	fmt.Fprintf(w, "Language:  %s (runtime %d)\n", rec.LanguageKey, rec.RuntimeID)
	fmt.Fprintf(w, "Driver:    %s\n", rec.Driver)
	fmt.Fprintf(w, "Endpoint:  %s\n", rec.Endpoint)
	fmt.Fprintf(w, "Kind:      %s\n", rec.OutcomeKind)
	fmt.Fprintf(w, "Duration:  %dms\n", rec.DurationMS)
	fmt.Fprintf(w, "Created:   %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "\n--- source ---\n%s\n", rec.SourceCode)
	if rec.Stdin != "" {
		fmt.Fprintf(w, "\n--- stdin ---\n%s\n", rec.Stdin)
	}
	fmt.Fprintf(w, "\n--- outcome ---\n%s\n", rec.OutcomeText)
	return nil
}
