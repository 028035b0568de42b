package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dejo1307/swiftmetrics/internal/engine"
	"github.com/dejo1307/swiftmetrics/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate the report whenever a Swift file changes",
	Long: `Analyze the source tree, then watch it and regenerate the report after
every burst of Swift file changes. The debounce window comes from
watch.debounce_ms in the configuration.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	a.regenerate(ctx, nil)

	debounce := time.Duration(a.cfg.Watch.DebounceMS) * time.Millisecond
	w, err := watcher.New(a.root, debounce, a.cfg.Ignore, a.cfg.Exclude, func(changed []string) {
		a.regenerate(ctx, changed)
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	fmt.Println(statusStyle.Render(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", a.root)))
	return w.Run(ctx)
}

// regenerate runs the analysis and prints a one-line status.
func (a *app) regenerate(ctx context.Context, changed []string) {
	if len(changed) > 0 {
		log.Printf("[main] %d file(s) changed, regenerating", len(changed))
	}

	snap, err := a.eng.Run(ctx, a.root)
	switch {
	case errors.Is(err, engine.ErrNoSourceFiles):
		fmt.Println(statusStyle.Render("no data: no Swift source files"))
		return
	case err != nil:
		fmt.Println(errorStyle.Render(fmt.Sprintf("analysis failed: %v", err)))
		return
	}

	if err := a.eng.WriteArtifacts(a.root); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("writing artifacts: %v", err)))
		return
	}
	fmt.Println(statusLine(snap))
}
