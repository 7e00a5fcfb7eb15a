// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio MCP server bound to the current user.
package main

import (
	"os/signal"
	"syscall"

	"github.com/harperreed/healthhub/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout and acts as the configured
default_user (or --user).

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "healthhub": {
        "command": "healthhub",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  record_metric     Record a metric (blood pressure takes a diastolic value)
  record_symptom    Record a symptom
  get_status        Latest classified reading per metric type
  get_history       Metric and symptom timeline
  get_chart         Series for one metric type
  reconcile         Move staged records into the primary store

AVAILABLE RESOURCES:

  health://status   Latest status report
  health://pending  Records staged while the primary store was down`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(mcp.Deps{
			Writer:     writer,
			Reader:     reader,
			Reconciler: reconciler,
			UserID:     currentUser(),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
