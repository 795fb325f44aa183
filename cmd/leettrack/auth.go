package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/spf13/cobra"
)

var (
	authPassword string
	signupEmail  string
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and load your progress",
	Long:  "Log in to the tracker backend. The password is read from --password or, when omitted, from the first line of stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup <username>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear local progress",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&authPassword, "password", "",
		"Account password (read from stdin when empty)")
	signupCmd.Flags().StringVar(&authPassword, "password", "",
		"Account password (read from stdin when empty)")
	signupCmd.Flags().StringVar(&signupEmail, "email", "",
		"Email address for reminders and summaries")
}

// readPassword returns the --password flag or the first line of r.
func readPassword(r io.Reader) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return printAuthResult(cmd, a, a.session.Login(ctx, args[0], password))
	})
}

func runSignup(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		return printAuthResult(cmd, a, a.session.Signup(ctx, args[0], password, signupEmail))
	})
}

func printAuthResult(cmd *cobra.Command, a *app, res session.AuthResult) error {
	if jsonOutput {
		out := map[string]any{
			"success": res.Success,
			"message": res.Message,
		}
		if u := a.session.User(); u != nil && res.Success {
			out["user"] = u
			out["dailyGoal"] = a.session.DailyGoal()
		}
		if err := printJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	if !jsonOutput {
		st := a.session.Statistics()
		fmt.Fprintf(cmd.OutOrStdout(), "%s. Logged in as %s (%d/%d solved)\n",
			res.Message, a.session.User().Username, st.Completed, st.Total)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		wasLoggedIn := a.session.LoggedIn()
		a.session.Logout()

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"loggedOut": wasLoggedIn,
			})
		}
		if !wasLoggedIn {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	})
}
