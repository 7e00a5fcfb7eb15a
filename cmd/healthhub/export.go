// ABOUTME: CLI commands for exporting and importing health data.
// ABOUTME: Supports JSON (backup/restore) and YAML (human-readable) formats.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/healthhub/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportOutput   string
	exportSince    string
	exportAllUsers bool
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export health data",
	Long: `Export health data in various formats.

Exports include records still staged in the fallback store under "pending".

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --since        Only include data since this date (YYYY-MM-DD)
  --all-users    Export every user instead of the current one

EXAMPLES:

  healthhub export json                        # Export all data as JSON
  healthhub export json -o backup.json         # Save to file
  healthhub export yaml --since 2024-01-01     # YAML from 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml"},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := export.Options{UserID: currentUser()}
		if exportAllUsers {
			opts.UserID = 0
		}
		if exportSince != "" {
			t, err := time.Parse("2006-01-02", exportSince)
			if err != nil {
				return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
			}
			opts.Since = &t
		}

		data, err := export.Collect(cmd.Context(), primary, staging, opts)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		var out []byte
		switch format := args[0]; format {
		case "json":
			out, err = export.JSON(data)
		case "yaml":
			out, err = export.YAML(data)
		default:
			return fmt.Errorf("unknown format: %s (use json or yaml)", format)
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, out, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(out))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import health data from JSON",
	Long: `Import health data from a JSON backup file.

This imports metrics and symptoms from a previously exported JSON file into
the primary store. Records whose id already exists are skipped, so an import
can be re-run safely.

EXAMPLES:

  healthhub import backup.json               # Import from file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		raw, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		summary, err := export.Import(cmd.Context(), primary, raw)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported from %s", filename)
		fmt.Printf("  Metrics:  %d\n", summary.Metrics)
		fmt.Printf("  Symptoms: %d\n", summary.Symptoms)
		if summary.Skipped > 0 {
			fmt.Printf("  Skipped:  %d (already present)\n", summary.Skipped)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include data since date (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportAllUsers, "all-users", false, "export every user")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
