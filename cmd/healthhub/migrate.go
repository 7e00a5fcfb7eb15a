// ABOUTME: CLI command for copying records between primary backends.
// ABOUTME: Moves metrics and symptoms between SQLite and Charm KV, skipping ids already present.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/healthhub/internal/charm"
	"github.com/harperreed/healthhub/internal/config"
	"github.com/harperreed/healthhub/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateFrom   string
	migrateTo     string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy records between primary backends",
	Long: `Copy every user's metrics and symptoms from one primary backend to another.

Records whose id already exists in the destination are skipped, so a
migration can be re-run after a partial failure. Staged fallback records are
not touched; reconcile them first.

USAGE:

  healthhub migrate --from sqlite --to charm --dry-run   # Preview
  healthhub migrate --from sqlite --to charm             # Copy to Charm
  healthhub migrate --from charm --to sqlite             # Copy back

Remember to set "backend" in the config to the new store afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == migrateTo {
			return fmt.Errorf("--from and --to must differ")
		}

		// Release the configured stores; the source or destination may be one of them.
		if err := closeStores(); err != nil {
			return err
		}

		src, err := openBackend(migrateFrom)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer src.Close()

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			metrics, err := src.ListMetrics(cmd.Context(), storage.MetricFilter{})
			if err != nil {
				return fmt.Errorf("failed to list metrics: %w", err)
			}
			symptoms, err := src.ListSymptoms(cmd.Context(), storage.SymptomFilter{})
			if err != nil {
				return fmt.Errorf("failed to list symptoms: %w", err)
			}
			fmt.Printf("  Would copy %d metric(s) and %d symptom(s) from %s to %s\n",
				len(metrics), len(symptoms), migrateFrom, migrateTo)
			return nil
		}

		if migrateTo == config.BackendSQLite {
			if existing, err := storage.IsDirNonEmpty(cfg.GetDataDir()); err == nil && existing {
				color.Yellow("Note: %s is not empty; records with matching ids are skipped", cfg.GetDataDir())
			}
		}

		dst, err := openBackend(migrateTo)
		if err != nil {
			return fmt.Errorf("failed to open destination: %w", err)
		}
		defer dst.Close()

		// One sync at the end instead of one per record.
		client, toCharm := dst.(*charm.Client)
		if toCharm {
			client.SetAutoSync(false)
		}

		summary, err := storage.MigrateData(cmd.Context(), src, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		if toCharm {
			if err := client.Sync(); err != nil {
				color.Yellow("⚠ Sync after migration failed: %v", err)
			}
		}

		color.Green("✓ Migrated %s → %s", migrateFrom, migrateTo)
		fmt.Printf("  Metrics:  %d\n", summary.Metrics)
		fmt.Printf("  Symptoms: %d\n", summary.Symptoms)
		if summary.Skipped > 0 {
			fmt.Printf("  Skipped:  %d (already present)\n", summary.Skipped)
		}
		if db, ok := dst.(*storage.DB); ok {
			fmt.Printf("  Database: %s\n", db.Path())
		}
		return nil
	},
}

// openBackend opens a primary store using the loaded config with another backend.
func openBackend(backend string) (storage.PrimaryStore, error) {
	c := *cfg
	c.Backend = backend
	switch backend {
	case config.BackendSQLite, config.BackendCharm:
	default:
		return nil, fmt.Errorf("cannot migrate with backend %q (want sqlite or charm)", backend)
	}
	return c.OpenPrimary()
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", config.BackendSQLite, "source backend (sqlite or charm)")
	migrateCmd.Flags().StringVar(&migrateTo, "to", config.BackendCharm, "destination backend (sqlite or charm)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
