package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hyperengineering/leettrack/internal/exchange"
	"github.com/spf13/cobra"
)

var (
	exportOut    string
	exportBackup bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export progress to a JSON file",
	Long: "Write an export file named leetcode-tracker-YYYY-MM-DD.json, or to --out. " +
		"Use --out - for stdout. With --backup, upload the export to the configured bucket instead.",
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace progress with an export file",
	Long:  "Replace the whole progress map with the contents of an export file. Use - for stdin. Nothing changes unless the file is valid.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "",
		"Output path (default: leetcode-tracker-<date>.json)")
	exportCmd.Flags().BoolVar(&exportBackup, "backup", false,
		"Upload to object storage and print a download URL")
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if exportBackup {
			res, err := a.session.Backup(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\nDownload: %s\nExpires:  %s\n",
				res.Key, res.URL, res.ExpiresAt.Format("2006-01-02 15:04"))
			return nil
		}

		doc := a.session.ExportDocument()
		if exportOut == "-" {
			return exchange.Encode(cmd.OutOrStdout(), doc)
		}

		path := exportOut
		if path == "" {
			path = exchange.FileName(doc.ExportDate)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		if err := exchange.Encode(f, doc); err != nil {
			f.Close()
			return fmt.Errorf("write export file: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write export file: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"path":    path,
				"records": len(doc.Progress),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(doc.Progress), path)
		return nil
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		if err := a.session.Import(r); err != nil {
			return err
		}

		st := a.session.Statistics()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported. %d/%d solved, daily goal %d\n",
			st.Completed, st.Total, a.session.DailyGoal())
		return nil
	})
}
