package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/types"
	"github.com/spf13/cobra"
)

var (
	prefsLeetCode string
	prefsEmail    string
	prefsReminder bool
	prefsSummary  bool
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change account preferences",
	Long:  "Without flags, shows the current preferences. Only the flags given are changed.",
	Args:  cobra.NoArgs,
	RunE:  runPrefs,
}

func init() {
	prefsCmd.Flags().StringVar(&prefsLeetCode, "leetcode", "",
		"Linked LeetCode username")
	prefsCmd.Flags().StringVar(&prefsEmail, "email", "",
		"Email address")
	prefsCmd.Flags().BoolVar(&prefsReminder, "reminder", false,
		"Enable the daily reminder email")
	prefsCmd.Flags().BoolVar(&prefsSummary, "summary", false,
		"Enable the end-of-day summary email")
}

// buildPreferences turns the flags that were set into a sparse update.
// Toggles start from current so an unset toggle keeps its value.
func buildPreferences(cmd *cobra.Command, current types.Preferences) session.PreferencesUpdate {
	var u session.PreferencesUpdate
	flags := cmd.Flags()
	if flags.Changed("leetcode") {
		u.LeetCodeUsername = types.Ptr(prefsLeetCode)
	}
	if flags.Changed("email") {
		u.Email = types.Ptr(prefsEmail)
	}
	if flags.Changed("reminder") || flags.Changed("summary") {
		p := current
		if flags.Changed("reminder") {
			p.EnableDailyReminder = prefsReminder
		}
		if flags.Changed("summary") {
			p.EnableEndOfDaySummary = prefsSummary
		}
		u.Preferences = &p
	}
	return u
}

func runPrefs(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}

		update := buildPreferences(cmd, a.session.User().Preferences)
		if !update.IsEmpty() {
			if err := a.session.UpdatePreferences(update); err != nil {
				return err
			}
		}

		u := a.session.User()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"user":      u,
				"dailyGoal": a.session.DailyGoal(),
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Username:        %s\n", u.Username)
		fmt.Fprintf(out, "Email:           %s\n", orDash(u.Email))
		fmt.Fprintf(out, "LeetCode:        %s\n", orDash(u.LeetCodeUsername))
		fmt.Fprintf(out, "Daily goal:      %d\n", a.session.DailyGoal())
		fmt.Fprintf(out, "Daily reminder:  %t\n", u.Preferences.EnableDailyReminder)
		fmt.Fprintf(out, "End-of-day mail: %t\n", u.Preferences.EnableEndOfDaySummary)
		return nil
	})
}
