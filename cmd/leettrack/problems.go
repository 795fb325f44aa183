package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/types"
	"github.com/hyperengineering/leettrack/internal/validation"
	"github.com/spf13/cobra"
)

var (
	filterCategory   string
	filterStatus     string
	filterDifficulty string
	filterSearch     string
)

var (
	updateStatus    string
	updatePriority  string
	updateNotes     string
	updateTimeSpent int
	updateDate      string
	updateClearDate bool
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List catalog problems with your progress",
	Args:  cobra.NoArgs,
	RunE:  runProblems,
}

var updateCmd = &cobra.Command{
	Use:   "update <problem-id>",
	Short: "Update progress on a problem",
	Long: "Apply a partial update to one problem. Only the flags given are changed. " +
		"Marking a problem done stamps today's date unless one is already set.",
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	problemsCmd.Flags().StringVar(&filterCategory, "category", "",
		"Category key (default: all)")
	problemsCmd.Flags().StringVar(&filterStatus, "status", "",
		"Status: todo, inProgress, done")
	problemsCmd.Flags().StringVar(&filterDifficulty, "difficulty", "",
		"Difficulty: Easy, Medium, Hard")
	problemsCmd.Flags().StringVar(&filterSearch, "search", "",
		"Case-insensitive title search")

	updateCmd.Flags().StringVar(&updateStatus, "status", "",
		"Status: todo, inProgress, done")
	updateCmd.Flags().StringVar(&updatePriority, "priority", "",
		"Priority: none, low, medium, high")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "",
		"Free-form notes (replaces existing notes)")
	updateCmd.Flags().IntVar(&updateTimeSpent, "time", 0,
		"Minutes spent")
	updateCmd.Flags().StringVar(&updateDate, "date", "",
		"Completion date YYYY-MM-DD")
	updateCmd.Flags().BoolVar(&updateClearDate, "clear-date", false,
		"Remove the completion date")
}

func runProblems(cmd *cobra.Command, args []string) error {
	var c validation.Collector
	if filterStatus != "" && filterStatus != catalog.All && !types.Status(filterStatus).Valid() {
		c.Add(&validation.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", filterStatus)})
	}
	if filterDifficulty != "" && filterDifficulty != catalog.All && !types.Difficulty(filterDifficulty).Valid() {
		c.Add(&validation.ValidationError{Field: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", filterDifficulty)})
	}
	if err := c.Err(); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		problems := a.session.ProblemsWithProgress(catalog.Filter{
			Category:   filterCategory,
			Status:     filterStatus,
			Difficulty: filterDifficulty,
			Search:     filterSearch,
		})

		if jsonOutput {
			if problems == nil {
				problems = []types.ProblemWithProgress{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"problems": problems,
				"total":    len(problems),
			})
		}

		if len(problems) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No problems match.")
			return nil
		}

		w := newTabWriter(cmd.OutOrStdout())
		fmt.Fprintln(w, "ID\tTITLE\tDIFFICULTY\tCATEGORY\tSTATUS\tPRIORITY\tCOMPLETED")
		for _, p := range problems {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID,
				p.Title,
				p.Difficulty,
				p.Category,
				p.Status,
				p.Priority,
				orDash(p.DateCompleted),
			)
		}
		return w.Flush()
	})
}

// buildUpdate turns the flags that were set into a sparse update.
func buildUpdate(cmd *cobra.Command) types.ProgressUpdate {
	var u types.ProgressUpdate
	flags := cmd.Flags()
	if flags.Changed("status") {
		s := types.Status(updateStatus)
		u.Status = &s
	}
	if flags.Changed("priority") {
		p := types.Priority(strings.ToLower(updatePriority))
		u.Priority = &p
	}
	if flags.Changed("notes") {
		u.Notes = types.Ptr(updateNotes)
	}
	if flags.Changed("time") {
		u.TimeSpent = types.Ptr(updateTimeSpent)
	}
	if flags.Changed("date") {
		u.DateCompleted = types.Ptr(updateDate)
	}
	if updateClearDate {
		u.DateCompleted = types.Ptr("")
	}
	return u
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]
	update := buildUpdate(cmd)
	if errs := validation.ValidateProgressUpdate(update); len(errs) > 0 {
		return validation.Errors(errs)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		if _, ok := a.session.Catalog().Lookup(id); !ok {
			return fmt.Errorf("unknown problem %q", id)
		}

		rec, _ := a.session.UpdateProgress(id, update)

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), types.ProgressEntry{ProblemID: id, ProgressRecord: rec})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: status=%s priority=%s completed=%s\n",
			id, rec.Status, rec.Priority, orDash(rec.DateCompleted))
		return nil
	})
}
