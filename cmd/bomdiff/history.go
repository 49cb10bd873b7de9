package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bomdiff/internal/config"
	"github.com/JonMunkholm/bomdiff/internal/history"
)

// historyTimeout bounds each history maintenance command.
const historyTimeout = 30 * time.Second

var (
	historyLimit     int
	historyOlderThan time.Duration
	historyYes       bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or prune the comparison history database",
	Long: `Work with the comparison history kept by the server when DATABASE_URL
is set. The database settings are read from the environment and .env.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent comparisons",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete history entries older than a cutoff",
	Long: `Delete comparison history older than --older-than.
This is a destructive operation; pass --yes to confirm.

Examples:
  bomdiff history purge --older-than 2160h --yes`,
	Args: cobra.NoArgs,
	RunE: runHistoryPurge,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultRecentLimit, "Number of entries")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 90*24*time.Hour, "Age of the oldest entry to keep")
	historyPurgeCmd.Flags().BoolVar(&historyYes, "yes", false, "Confirm deletion")

	historyCmd.AddCommand(historyListCmd, historyPurgeCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory connects to the configured history database. The caller
// must call the returned close function.
func openHistory(ctx context.Context) (*history.Store, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Database.Enabled() {
		return nil, nil, errors.New("comparison history is not configured: set DATABASE_URL")
	}

	pool, err := history.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return history.NewStore(pool), pool.Close, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), historyTimeout)
	defer cancel()

	store, closeDB, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No comparisons recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFILE 1\tFILE 2\tDELETE\tADD\tCHANGE\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Names.File1, e.Names.File2,
			e.Stats.RemovedPartsCount, e.Stats.NewPartsCount, e.Stats.ModifiedPartsCount,
			e.Duration.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	if !historyYes {
		return errors.New("refusing to delete history without --yes")
	}
	if historyOlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), historyTimeout)
	defer cancel()

	store, closeDB, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	cutoff := time.Now().Add(-historyOlderThan)
	n, err := store.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries older than %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}
