package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var leetcodeCmd = &cobra.Command{
	Use:   "leetcode [username]",
	Short: "Show a public LeetCode profile",
	Long:  "Fetch solved counts and recent accepted submissions. Defaults to the linked LeetCode username.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLeetCode,
}

func runLeetCode(cmd *cobra.Command, args []string) error {
	var username string
	if len(args) == 1 {
		username = args[0]
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.session.LeetCodeProfile(ctx, username)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "LeetCode profile: %s\n", p.Username)
		if p.Stats != nil {
			fmt.Fprintf(out, "Solved: %d (Easy %d, Medium %d, Hard %d)\n",
				p.Stats.TotalSolved, p.Stats.EasySolved, p.Stats.MediumSolved, p.Stats.HardSolved)
		} else {
			fmt.Fprintln(out, "Solved: unavailable")
		}

		if len(p.Submissions) == 0 {
			fmt.Fprintln(out, "No recent submissions.")
			return nil
		}
		fmt.Fprintln(out)
		w := newTabWriter(out)
		fmt.Fprintln(w, "SUBMITTED\tTITLE")
		for _, s := range p.Submissions {
			fmt.Fprintf(w, "%s\t%s\n",
				time.Unix(int64(s.Timestamp), 0).Format("2006-01-02 15:04"),
				s.Title,
			)
		}
		return w.Flush()
	})
}
