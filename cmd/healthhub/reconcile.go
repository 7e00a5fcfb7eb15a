// ABOUTME: CLI commands for the offline fallback: pending and reconcile.
// ABOUTME: Drains staged records into the primary store with a confirmed or clear-all policy.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthhub/internal/config"
	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	reconcileFile     string
	reconcileClearAll bool
	pendingVerbose    bool
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show records staged while the primary store was down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := reconciler.Pending(cmd.Context())
		if len(entries) == 0 {
			color.Green("✓ Nothing staged")
			return nil
		}

		color.Yellow("%d staged record(s)", len(entries))
		if !pendingVerbose {
			fmt.Println("Run 'healthhub reconcile' to move them into the primary store.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, e := range entries {
			kind := e.MetricType
			if e.IsSymptom() {
				kind = e.Symptom
			}
			fmt.Printf("  %s %s user=%d %s\n",
				faint.Sprint(padRight(truncate(e.ID, 8), 8)),
				faint.Sprint(padRight(e.RecordedAt, 25)),
				e.UserID,
				kind)
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:     "reconcile",
	Aliases: []string{"sync-local"},
	Short:   "Move staged records into the primary store",
	Long: `Move records staged while the primary store was down into it.

Records already present are counted as duplicates and treated as moved.
By default only records confirmed in the primary store are removed from the
staging area; failures stay for the next run. --clear-all empties the
staging area once anything was inserted, discarding failures.

EXAMPLES:

  healthhub reconcile
  healthhub reconcile --file ~/old/health_metrics.json
  healthhub sync-local --clear-all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec := reconciler
		if reconcileClearAll || reconcileFile != "" {
			policy := rec.Policy()
			if reconcileClearAll {
				policy = reconcile.ClearAll
			}
			fb := staging
			if reconcileFile != "" {
				file, err := fallback.NewJSONFile(config.ExpandPath(reconcileFile))
				if err != nil {
					return err
				}
				defer file.Close()
				fb = file
			}
			rec = reconcile.New(primary, fb, policy)
		}

		summary, err := rec.Drain(cmd.Context())
		switch {
		case errors.Is(err, reconcile.ErrPrimaryUnavailable):
			color.Red("✗ Primary store unavailable; nothing was moved")
			return err
		case err != nil:
			return fmt.Errorf("reconcile failed: %w", err)
		}

		if summary.Pending == 0 {
			color.Green("✓ Nothing to reconcile")
			return nil
		}

		color.Green("✓ Reconciled %d of %d staged record(s)", summary.Inserted+summary.Duplicates, summary.Pending)
		fmt.Printf("  Inserted:   %d\n", summary.Inserted)
		fmt.Printf("  Duplicates: %d\n", summary.Duplicates)
		fmt.Printf("  Cleared:    %d (%s)\n", summary.Cleared, summary.Policy)
		if len(summary.Failures) > 0 {
			color.Yellow("  Failed:     %d", len(summary.Failures))
			for _, f := range summary.Failures {
				fmt.Printf("    %s: %s\n", truncate(f.Entry.Key(), 40), f.Reason)
			}
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().BoolVarP(&pendingVerbose, "verbose", "v", false, "list each staged record")
	reconcileCmd.Flags().StringVar(&reconcileFile, "file", "", "JSON staging file to drain instead of the configured store")
	reconcileCmd.Flags().BoolVar(&reconcileClearAll, "clear-all", false, "empty the staging area after any successful insert")

	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(reconcileCmd)
}
