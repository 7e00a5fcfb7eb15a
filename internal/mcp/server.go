// ABOUTME: MCP server setup for the healthhub store.
// ABOUTME: Wraps the MCP server around the write, read and reconcile paths.
package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/healthhub/internal/dualwrite"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Deps are the services the MCP tools call.
type Deps struct {
	Writer     *dualwrite.Writer
	Reader     *readpath.Reader
	Reconciler *reconcile.Reconciler
	// UserID owns every record written or read through this server.
	UserID int64
}

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer  *mcp.Server
	writer     *dualwrite.Writer
	reader     *readpath.Reader
	reconciler *reconcile.Reconciler
	userID     int64
	now        func() time.Time
}

// NewServer creates a new MCP server over deps.
func NewServer(deps Deps) (*Server, error) {
	if deps.Writer == nil || deps.Reader == nil || deps.Reconciler == nil {
		return nil, errors.New("mcp server needs a writer, reader and reconciler")
	}
	if deps.UserID <= 0 {
		return nil, errors.New("mcp server needs a positive user id")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "healthhub",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer:  mcpServer,
		writer:     deps.Writer,
		reader:     deps.Reader,
		reconciler: deps.Reconciler,
		userID:     deps.UserID,
		now:        time.Now,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
