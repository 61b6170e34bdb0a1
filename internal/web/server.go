// Package web provides the HTTP status and control API of the sync service.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/OnlyOnCloud/TallySyncService/internal/config"
	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	mw "github.com/OnlyOnCloud/TallySyncService/internal/web/middleware"
)

// CircuitReporter exposes the remote circuit breaker state.
type CircuitReporter interface {
	CircuitState() string
}

// Server is the HTTP server for the status API.
type Server struct {
	service  *core.Service
	store    core.StateStore
	circuit  CircuitReporter
	cfg      config.ServerConfig
	security config.SecurityConfig
	router   *chi.Mux
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithCircuit reports the remote circuit state on /api/status.
func WithCircuit(c CircuitReporter) Option {
	return func(s *Server) { s.circuit = c }
}

// NewServer creates a new Server instance. store must be the store the
// service persists to; resets write through it.
func NewServer(service *core.Service, store core.StateStore, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service:  service,
		store:    store,
		cfg:      cfg.Server,
		security: cfg.Security,
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Liveness stays outside auth for process supervisors.
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.security))

		r.Get("/status", s.handleStatus)
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{tableKey}/state", s.handleTableState)

		// Manual triggers run in the background.
		r.Post("/sync", s.handleSyncAll)
		r.Post("/tables/{tableKey}/sync", s.handleSyncTable)

		// Reset operations
		r.Post("/tables/{tableKey}/reset", s.handleReset)
		r.Post("/reset", s.handleResetAll)
	})
}

// Start begins listening for HTTP requests. It returns nil once Shutdown
// has closed the listener.
func (s *Server) Start() error {
	addr := s.cfg.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("status API listening", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// The API serves JSON only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
