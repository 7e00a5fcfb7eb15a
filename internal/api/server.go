// ABOUTME: HTTP server exposing the health endpoints over echo.
// ABOUTME: Wires identity, request metrics, and the write, read and reconcile paths.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/harperreed/healthhub/internal/dualwrite"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/metrics"
	"github.com/harperreed/healthhub/internal/readpath"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/labstack/echo/v4"
)

const ctxUserID = "user_id"

// Options configures a Server.
type Options struct {
	Writer     *dualwrite.Writer
	Reader     *readpath.Reader
	Reconciler *reconcile.Reconciler
	Identity   IdentityResolver
	// TestRoutes mounts /test/health routes that resolve users from X-User-Id.
	TestRoutes bool
	// Admins lists the user ids allowed to drain the fallback store.
	Admins []int64
}

// Server serves the health API.
type Server struct {
	echo       *echo.Echo
	writer     *dualwrite.Writer
	reader     *readpath.Reader
	reconciler *reconcile.Reconciler
	admins     map[int64]bool
}

// New builds a Server with all routes registered.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		writer:     opts.Writer,
		reader:     opts.Reader,
		reconciler: opts.Reconciler,
		admins:     make(map[int64]bool, len(opts.Admins)),
	}
	for _, id := range opts.Admins {
		s.admins[id] = true
	}

	e.Use(instrument)
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	identity := opts.Identity
	if identity == nil {
		identity = NewTokenResolver(nil)
	}
	g := e.Group("/health", requireUser(identity))
	s.mount(g)
	g.POST("/fallback/reconcile", s.reconcile, s.requireAdmin)
	g.GET("/fallback/pending", s.pending)
	if opts.TestRoutes {
		s.mount(e.Group("/test/health", requireUser(HeaderResolver{})))
	}

	return s
}

func (s *Server) mount(g *echo.Group) {
	g.POST("/metrics/record", s.recordMetric)
	g.GET("/metrics/status", s.status)
	g.GET("/status", s.status)
	g.GET("/charts/:metric", s.chart)
	g.GET("/history", s.history)
	g.POST("/symptoms/record", s.recordSymptom)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	logger := log.WithComponent("api")
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func requireUser(resolver IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, err := resolver.Resolve(c.Request())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"success": false,
					"message": "Unauthenticated.",
				})
			}
			c.Set(ctxUserID, uid)
			return next(c)
		}
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.admins[userID(c)] {
			return c.JSON(http.StatusForbidden, map[string]any{
				"success": false,
				"message": "Forbidden.",
			})
		}
		return next(c)
	}
}

func userID(c echo.Context) int64 {
	uid, _ := c.Get(ctxUserID).(int64)
	return uid
}

// instrument records request counts and latency by route template.
func instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		timer := metrics.NewTimer()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Response().Status)
		metrics.APIRequestsTotal.WithLabelValues(route, status).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route)

		log.WithComponent("api").Debug().
			Str("method", c.Request().Method).
			Str("route", route).
			Str("status", status).
			Dur("took", timer.Duration()).
			Msg("request")
		return nil
	}
}
