package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show completion statistics and streak",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var goalCmd = &cobra.Command{
	Use:   "goal [daily-goal]",
	Short: "Show or set the daily solve goal",
	Long:  "Without an argument, shows today's progress toward the goal. With one, sets the goal (1-20).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGoal,
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		st := a.session.Statistics()
		gp := a.session.Goal()

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"statistics": st,
				"goal":       gp,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Completed:   %d/%d\n", st.Completed, st.Total)
		fmt.Fprintf(out, "In progress: %d\n", st.InProgress)
		fmt.Fprintf(out, "Todo:        %d\n", st.Todo)
		fmt.Fprintf(out, "Today:       %d/%d\n", gp.Completed, gp.Goal)
		fmt.Fprintf(out, "Streak:      %d days\n", st.Streak)
		fmt.Fprintln(out)

		c := a.session.Catalog()
		w := newTabWriter(out)
		fmt.Fprintln(w, "CATEGORY\tDONE\tTOTAL\tPERCENT")
		for _, key := range c.Categories() {
			cp := st.CategoryProgress[key]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d%%\n", c.Name(key), cp.Completed, cp.Total, cp.Percentage)
		}
		return w.Flush()
	})
}

func runGoal(cmd *cobra.Command, args []string) error {
	var goal int
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("daily goal must be a number: %q", args[0])
		}
		goal = n
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if len(args) == 1 {
			if err := requireLogin(a); err != nil {
				return err
			}
			if err := a.session.SetDailyGoal(goal); err != nil {
				return err
			}
		}

		gp := a.session.Goal()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), gp)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Daily goal: %d\n", gp.Goal)
		fmt.Fprintf(out, "Today:      %d solved, %d remaining (%d%%)\n", gp.Completed, gp.Remaining, gp.Percentage)
		if gp.Achieved {
			fmt.Fprintln(out, "Goal achieved for today.")
		}
		return nil
	})
}
