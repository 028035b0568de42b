package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dejo1307/swiftmetrics/internal/history"
	"github.com/dejo1307/swiftmetrics/internal/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "swiftmetrics %s (history schema v%d)\n", server.Version, history.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
