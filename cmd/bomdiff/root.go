package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomdiff/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "bomdiff",
	Short: "Compare two bills of materials",
	Long: `bomdiff compares two BOM workbooks through the comparison backend and
works with saved comparison results offline.

A comparison classifies every part as Delete (only in File 1), Add (only in
File 2), Change (same MPN, different data), Unchanged or Unrecognized.

Examples:
  bomdiff compare rev-a.xlsx rev-b.xlsx -o result.json
  bomdiff filter result.json -q R5
  bomdiff export result.json --name1 rev-a.xlsx --name2 rev-b.xlsx -d out/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Results go to stdout; keep logs out of the way.
		slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}
