package main

import (
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/dejo1307/swiftmetrics/internal/engine"
	"github.com/dejo1307/swiftmetrics/internal/server"
)

var serveLazy bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve module metrics to MCP clients over stdio",
	Long: `Start an MCP server on stdio. Clients call generate_report to analyze the
source tree and then query modules, files, dependencies and history.

Unless --lazy is given, the configured source tree is analyzed once at
startup so queries work without a generate_report call.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveLazy, "lazy", false, "Skip the initial analysis at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if !serveLazy {
		if _, err := a.eng.Run(ctx, a.root); err != nil {
			if errors.Is(err, engine.ErrNoSourceFiles) {
				log.Printf("[main] no Swift sources under %s yet", a.root)
			} else {
				log.Printf("[main] warning: initial analysis failed: %v", err)
			}
		} else {
			log.Printf("[main] initial report ready (%d modules)", a.eng.Snapshot().Report.Meta.Modules)
		}
	}

	srv, err := server.New(a.eng, a.cfg, a.history)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
