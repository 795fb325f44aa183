package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/leettrack/internal/store"
	"github.com/spf13/cobra"
)

var (
	syncLogLimit int
	syncLogStats bool
)

var syncLogCmd = &cobra.Command{
	Use:   "sync-log",
	Short: "Show recent pushes to the server",
	Long:  "List the most recent remote push attempts recorded in the local cache, newest first.",
	Args:  cobra.NoArgs,
	RunE:  runSyncLog,
}

func init() {
	syncLogCmd.Flags().IntVar(&syncLogLimit, "limit", 20,
		"Maximum number of entries (1-1000)")
	syncLogCmd.Flags().BoolVar(&syncLogStats, "stats", false,
		"Show cache totals instead of entries")
}

func runSyncLog(cmd *cobra.Command, args []string) error {
	if syncLogLimit < 1 || syncLogLimit > 1000 {
		return fmt.Errorf("--limit must be between 1 and 1000, got %d", syncLogLimit)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if a.cache == nil {
			return errors.New("local cache is disabled (cache.path is empty)")
		}

		if syncLogStats {
			return printCacheStats(ctx, cmd, a.cache)
		}

		entries, err := a.cache.RecentSyncLog(ctx, syncLogLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			if entries == nil {
				entries = []store.SyncLogEntry{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"entries": entries,
				"total":   len(entries),
			})
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No pushes recorded.")
			return nil
		}

		w := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(w, "TIME\tKIND\tTARGET\tOUTCOME\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Kind,
				e.Target,
				e.Outcome,
				orDash(e.Error),
			)
		}
		return w.Flush()
	})
}

func printCacheStats(ctx context.Context, cmd *cobra.Command, cache *store.SQLiteStore) error {
	st, err := cache.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), st)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session cached: %t\n", st.HasSession)
	fmt.Fprintf(out, "Progress rows:  %d\n", st.ProgressCount)
	fmt.Fprintf(out, "Sync log rows:  %d\n", st.SyncLogCount)
	fmt.Fprintf(out, "Failed pushes:  %d\n", st.FailedPushes)
	if st.LastSavedAt != nil {
		fmt.Fprintf(out, "Last saved:     %s\n", st.LastSavedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
