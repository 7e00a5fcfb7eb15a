// ABOUTME: MCP resource implementations for health status and staged records.
// ABOUTME: Provides health://status and health://pending resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "health://status",
		Name:        "Health Status",
		Description: "Latest classified reading for each metric type",
		MIMEType:    "application/json",
	}, s.handleStatusResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "health://pending",
		Name:        "Pending Records",
		Description: "Records staged locally while the primary store was unavailable",
		MIMEType:    "application/json",
	}, s.handlePendingResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleStatusResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	report, err := s.reader.LatestStatusPerType(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status: %w", err)
	}
	return jsonResource("health://status", report)
}

func (s *Server) handlePendingResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	entries := s.reconciler.Pending(ctx)
	return jsonResource("health://pending", map[string]any{
		"count":   len(entries),
		"policy":  s.reconciler.Policy(),
		"entries": entries,
	})
}
