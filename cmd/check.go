package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"checkup/internal/proc"
	"checkup/internal/runner"
)

var checkCmd = &cobra.Command{
	Use:   "check [path...]",
	Short: "Run a one-shot analysis and print the filtered diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		r := &runner.Runner{
			Binary:     flagBinary,
			ConfigPath: flagConfig,
			Registry:   registry,
			Logger:     logger,
			Timeout:    flagTimeout,
			Retry:      proc.Retry{Attempts: flagRetries},
		}
		res, err := r.Check(cmd.Context(), cwd, args)
		if err != nil {
			return err
		}

		printResult(res)
		if res.Total() > 0 {
			return fmt.Errorf("%d issue(s) found", res.Total())
		}
		return nil
	},
}

// printResult renders diagnostics grouped by file, followed by a summary.
func printResult(res *runner.Result) {
	files := make([]string, 0, len(res.Files))
	for f := range res.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		diags := res.Files[file]
		if len(diags) == 0 {
			continue
		}
		fmt.Println(renderFileHeader(file))
		for _, d := range diags {
			fmt.Println(renderDiagnostic(d))
		}
		fmt.Println()
	}

	summary := fmt.Sprintf("%d issue(s)", res.Total())
	if res.Suppressed > 0 {
		summary += fmt.Sprintf(", %d suppressed", res.Suppressed)
	}
	fmt.Println(renderSummary(summary, res.Total() == 0))
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
