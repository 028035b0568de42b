package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dejo1307/swiftmetrics/internal/engine"
)

var analyzeQuiet bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the source tree once and write the report",
	Long: `Analyze the configured Swift source tree, write output.json, report.md,
dependencies.dot, facts.jsonl and insights.json to the output directory and
print a summary table.

Examples:
  swiftmetrics analyze
  swiftmetrics analyze --source ./App --output build/metrics
  swiftmetrics analyze --config swiftmetrics.toml --history`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeQuiet, "quiet", "q", false, "Do not print the summary table")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.eng.Run(cmd.Context(), a.root)
	if errors.Is(err, engine.ErrNoSourceFiles) {
		fmt.Fprintf(os.Stderr, "no data: no Swift source files under %s\n", a.root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := a.eng.WriteArtifacts(a.root); err != nil {
		return fmt.Errorf("writing artifacts: %w", err)
	}

	if !analyzeQuiet {
		fmt.Println(renderSummary(snap, a.eng.OutputDir(a.root)))
	}
	return nil
}

