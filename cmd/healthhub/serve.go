// ABOUTME: CLI command for running the HTTP API.
// ABOUTME: Optionally runs the background reconcile loop next to the server.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/harperreed/healthhub/internal/api"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the health HTTP API.

ROUTES:

  POST /health/metrics/record     Record a metric
  GET  /health/metrics/status     Latest classified reading per type
  GET  /health/charts/:metric     Chart series (?days=N)
  GET  /health/history            Timeline (?metric=...&days=N)
  POST /health/symptoms/record    Record a symptom
  POST /health/fallback/reconcile Drain staged records (admin_users only)
  GET  /health/fallback/pending   Count the caller's staged records
  GET  /healthz                   Liveness
  GET  /metrics                   Prometheus metrics

Requests authenticate with "Authorization: Bearer <token>"; tokens map to
user ids in the config file. With test_routes enabled the same routes are
mounted under /test/health and trust the X-User-Id header; the fallback
routes are only served under /health.

When reconcile_interval is set, staged records are drained in the background.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := cfg.GetReconcileInterval()
		if err != nil {
			return err
		}

		addr := serveListen
		if addr == "" {
			addr = cfg.GetListen()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := log.WithComponent("serve")
		if len(cfg.Tokens) == 0 && !cfg.TestRoutes {
			logger.Warn().Msg("no tokens configured; every /health request will be rejected")
		}

		loopDone := make(chan struct{})
		if interval > 0 {
			logger.Info().Dur("interval", interval).Msg("background reconcile enabled")
			go func() {
				defer close(loopDone)
				if err := reconciler.Run(ctx, interval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("reconcile loop stopped")
				}
			}()
		} else {
			close(loopDone)
		}

		server := api.New(api.Options{
			Writer:     writer,
			Reader:     reader,
			Reconciler: reconciler,
			Identity:   api.NewTokenResolver(cfg.Tokens),
			TestRoutes: cfg.TestRoutes,
			Admins:     cfg.AdminUsers,
		})
		serveErr := server.Serve(ctx, addr)

		// Stores are closed in PersistentPostRunE; the loop must be idle first.
		stop()
		<-loopDone
		return serveErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: listen from config)")
	rootCmd.AddCommand(serveCmd)
}
