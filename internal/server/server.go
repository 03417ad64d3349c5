// Package server assembles the HTTP API: router, middleware chain, and
// lifecycle around the standard library http.Server.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shipyardlabs/cargohold/internal/config"
	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
	"github.com/shipyardlabs/cargohold/internal/server/handlers"
	"github.com/shipyardlabs/cargohold/internal/server/middleware"
	"github.com/shipyardlabs/cargohold/pkg/authz"
)

// Options carries the collaborators the API surface needs.
type Options struct {
	Version    string
	Health     *handlers.HealthManager
	Jobs       *handlers.Jobs
	Auth       authz.Authenticator
	RatePerSec float64
	RateBurst  int
	Logger     *zap.Logger
}

// Server wraps http.Server with the assembled router.
type Server struct {
	host       string
	port       int
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the server. The shutdown timeout is handled by the caller via
// Shutdown's context.
func New(cfg config.ServerConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(opts.Version)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.Respond(w, req, http.StatusNotFound, apperrors.CodeNotFound,
			fmt.Sprintf("no route for %s %s", req.Method, req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.Respond(w, req, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			fmt.Sprintf("method %s not allowed for %s", req.Method, req.URL.Path))
	})

	r.Get("/healthz", opts.Health.HealthHandler)
	r.Get("/version", handlers.Version(opts.Version))

	r.Route("/api/v1", func(api chi.Router) {
		if opts.RatePerSec > 0 {
			api.Use(middleware.RateLimit(opts.RatePerSec, opts.RateBurst))
		}
		api.Use(middleware.Authenticate(opts.Auth))

		api.Post("/jobs", opts.Jobs.Submit)
		api.Post("/jobs/status", opts.Jobs.Status)
		api.Post("/dispatch", opts.Jobs.Dispatch)
	})

	return &Server{
		host:   cfg.Host,
		port:   cfg.Port,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: opts.Logger,
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("API server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
