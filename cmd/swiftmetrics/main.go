package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dejo1307/swiftmetrics/internal/config"
	"github.com/dejo1307/swiftmetrics/internal/engine"
	"github.com/dejo1307/swiftmetrics/internal/explainers/cycles"
	"github.com/dejo1307/swiftmetrics/internal/explainers/zones"
	"github.com/dejo1307/swiftmetrics/internal/history"
	"github.com/dejo1307/swiftmetrics/internal/renderers/dot"
	"github.com/dejo1307/swiftmetrics/internal/renderers/jsonreport"
	"github.com/dejo1307/swiftmetrics/internal/renderers/markdown"
	"github.com/dejo1307/swiftmetrics/internal/server"
)

var (
	cfgPath     string
	sourceFlag  string
	outputFlag  string
	historyFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "swiftmetrics",
	Short: "Size, comment and coupling metrics for Swift code bases",
	Long: `swiftmetrics groups the Swift files of a source tree into modules and
reports size, comment density and Martin coupling metrics (fan-in, fan-out,
instability, abstractness, distance from the main sequence) per module.

Run "swiftmetrics analyze" for a one-shot report, "swiftmetrics serve" to
expose the metrics to MCP clients over stdio, or "swiftmetrics watch" to
regenerate the report on every change.`,
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("swiftmetrics version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultFile, "Configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "Swift source tree to analyze (overrides config)")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "Output directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&historyFlag, "history", false, "Record every run in the history database")
}

func main() {
	// Ensure log output goes to stderr, never stdout (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	if sourceFlag != "" {
		cfg.Source = sourceFlag
	}
	if outputFlag != "" {
		cfg.Output.Dir = outputFlag
	}
	if historyFlag {
		cfg.History.Enabled = true
	}
	return cfg, nil
}

// app bundles everything a command needs.
type app struct {
	cfg     *config.Config
	root    string
	eng     *engine.Engine
	history *history.Store
}

// setup builds the engine with every explainer and renderer registered, and
// opens the history database when enabled.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	// Register explainers
	eng.RegisterExplainer(cycles.New())
	eng.RegisterExplainer(zones.New())

	// Register renderers
	eng.RegisterRenderer(jsonreport.New())
	eng.RegisterRenderer(markdown.New(markdown.DefaultMaxTokens))
	eng.RegisterRenderer(dot.New())

	a := &app{cfg: cfg, root: root, eng: eng}
	if cfg.History.Enabled {
		hist, err := history.Open(cfg.HistoryPath(root))
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		eng.SetRecorder(hist)
		a.history = hist
	}
	return a, nil
}

// Close releases the history database.
func (a *app) Close() {
	if a.history == nil {
		return
	}
	if err := a.history.Close(); err != nil {
		log.Printf("[main] warning: closing history: %v", err)
	}
}
