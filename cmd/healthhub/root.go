// ABOUTME: Root Cobra command for the healthhub CLI.
// ABOUTME: Loads config and opens the primary and fallback stores via PersistentPre/PostRunE.
package main

import (
	"errors"
	"fmt"

	"github.com/harperreed/healthhub/internal/config"
	"github.com/harperreed/healthhub/internal/dualwrite"
	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/harperreed/healthhub/internal/storage"
	"github.com/spf13/cobra"
)

var (
	configPath string
	userFlag   int64

	cfg        *config.Config
	primary    storage.PrimaryStore
	staging    fallback.Store
	writer     *dualwrite.Writer
	reader     *readpath.Reader
	reconciler *reconcile.Reconciler
)

var rootCmd = &cobra.Command{
	Use:   "healthhub",
	Short: "Health metrics hub with offline fallback",
	Long: `Healthhub records health metrics and symptoms, classifies readings,
and keeps accepting writes while the primary store is down.

WHAT IT TRACKS:

  Metrics    blood_pressure, blood_sugar, weight, temperature, bmi, heart_rate
  Symptoms   any name, graded mild, moderate or severe

QUICK START:

  $ healthhub add weight 82.5              # Log your weight
  $ healthhub add blood_pressure 120 80    # Log blood pressure
  $ healthhub symptom headache -s mild     # Log a symptom
  $ healthhub status                       # Latest classified readings
  $ healthhub history --days 7             # Timeline for the last week

OFFLINE FALLBACK:

  When the primary store cannot be reached, writes are staged locally and
  reads include the staged records. Move them across once it is back:

  $ healthhub pending                      # Count staged records
  $ healthhub reconcile                    # Drain them into the primary store

SERVER:

  $ healthhub serve                        # HTTP API on 127.0.0.1:8080
  $ healthhub mcp                          # MCP server over stdio

CONFIG:

  Settings live in ~/.config/healthhub/config.json (backend, fallback,
  data_dir, tokens, reconcile_interval, log_level).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store init for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return openStores()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStores()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.config/healthhub/config.json)")
	rootCmd.PersistentFlags().Int64Var(&userFlag, "user", 0, "user id (default: default_user from config)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(config.ExpandPath(configPath))
	}
	return config.Load()
}

func openStores() error {
	var err error
	cfg, err = loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Init(cfg.LogConfig())

	policy, err := cfg.GetClearPolicy()
	if err != nil {
		return err
	}

	primary, err = cfg.OpenPrimary()
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.GetBackend(), err)
	}
	staging, err = cfg.OpenFallback()
	if err != nil {
		_ = primary.Close()
		primary = nil
		return fmt.Errorf("failed to open %s fallback: %w", cfg.GetFallback(), err)
	}

	writer = dualwrite.New(primary, staging)
	reader = readpath.New(primary, staging)
	reconciler = reconcile.New(primary, staging, policy)
	return nil
}

func closeStores() error {
	var errs []error
	if staging != nil {
		errs = append(errs, staging.Close())
		staging = nil
	}
	if primary != nil {
		errs = append(errs, primary.Close())
		primary = nil
	}
	writer, reader, reconciler = nil, nil, nil
	return errors.Join(errs...)
}

// currentUser is the --user flag or the configured default.
func currentUser() int64 {
	if userFlag > 0 {
		return userFlag
	}
	return cfg.GetDefaultUser()
}
