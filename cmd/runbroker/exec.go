package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/runbroker/internal/model"
)

var (
	languageFlag  string
	stdinFileFlag string
)

var execCmd = &cobra.Command{
	Use:   "exec <source-file>",
	Short: "Run one source file through the configured runner",
	Long: `Run a single source file and print the normalized outcome text.

Use "-" as the source file to read the program from standard input. The exit
status is 1 when the broker could not obtain a result.

Examples:
  runbroker exec --language python hello.py
  echo 'print(1)' | runbroker exec -l python -`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language key (c, cpp, java, javascript, python)")
	execCmd.Flags().StringVar(&stdinFileFlag, "stdin-file", "", "File whose contents are passed to the program as stdin")
	execCmd.MarkFlagRequired("language")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	source, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	var stdin string
	if stdinFileFlag != "" {
		data, err := os.ReadFile(stdinFileFlag)
		if err != nil {
			return fmt.Errorf("reading stdin file: %w", err)
		}
		stdin = string(data)
	}

	b, err := openBroker(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.close()

	out := b.engine.Execute(cmd.Context(), model.ExecutionRequest{
		LanguageKey: languageFlag,
		SourceCode:  source,
		Stdin:       stdin,
	})

	fmt.Fprint(cmd.OutOrStdout(), out.Text)
	if out.Failed() {
		return fmt.Errorf("execution failed: %s", out.Failure)
	}
	return nil
}

func readSource(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}
