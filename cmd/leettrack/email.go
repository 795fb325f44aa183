package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/spf13/cobra"
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Trigger notification emails",
}

var emailTestCmd = &cobra.Command{
	Use:   "test [address]",
	Short: "Send a test email (defaults to your address)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEmailTest,
}

var emailReminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Send today's reminder email",
	Args:  cobra.NoArgs,
	RunE:  runEmailReminder,
}

var emailSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Send the end-of-day summary email",
	Args:  cobra.NoArgs,
	RunE:  runEmailSummary,
}

func init() {
	emailCmd.AddCommand(emailTestCmd)
	emailCmd.AddCommand(emailReminderCmd)
	emailCmd.AddCommand(emailSummaryCmd)
}

func runEmailTest(cmd *cobra.Command, args []string) error {
	var address string
	if len(args) == 1 {
		address = args[0]
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		res, err := a.session.SendTestEmail(ctx, address)
		if err != nil {
			return err
		}
		return printEmailResult(cmd, res)
	})
}

func runEmailReminder(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		res, err := a.session.SendReminder(ctx)
		if err != nil {
			return err
		}
		return printEmailResult(cmd, res)
	})
}

func runEmailSummary(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		res, err := a.session.SendSummary(ctx)
		if err != nil {
			return err
		}
		return printEmailResult(cmd, res)
	})
}

func printEmailResult(cmd *cobra.Command, res session.EmailResult) error {
	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	if !jsonOutput {
		fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	}
	return nil
}
