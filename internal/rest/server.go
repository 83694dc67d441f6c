// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/pkg/correlation"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
	"github.com/jeremyhahn/go-turbocharger/pkg/ratelimit"
)

// Server represents the REST API server.
type Server struct {
	server    *http.Server
	handlers  *HandlerContext
	router    *chi.Mux
	port      int
	tlsConfig *tls.Config
	limiter   *ratelimit.Limiter
	origins   []string
	logger    logging.Logger
}

// Config holds the REST server configuration.
type Config struct {
	// Host is the interface to bind (default: all interfaces)
	Host string

	// Port is the HTTP port to listen on (default: 8080)
	Port int

	// Version is reported by GET /health
	Version string

	// Registry returns the current registry. It is called on every request.
	Registry func() *registry.Registry

	// IDs generates Snowflake IDs for GET /api/v1/ids (optional)
	IDs IDGenerator

	// HealthChecker backs the probe endpoints (optional)
	HealthChecker HealthChecker

	// RateLimiter throttles /api/v1 per client IP (optional)
	RateLimiter *ratelimit.Limiter

	// AllowedOrigins restricts CORS. Empty allows every origin.
	AllowedOrigins []string

	// TLSConfig is the TLS configuration for HTTPS (optional)
	TLSConfig *tls.Config

	// Logger is the logging adapter (optional)
	Logger logging.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new REST API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := logging.OrNop(cfg.Logger)

	s := &Server{
		handlers:  NewHandlerContext(cfg.Registry, cfg.IDs, cfg.Version, log),
		port:      cfg.Port,
		tlsConfig: cfg.TLSConfig,
		limiter:   cfg.RateLimiter,
		origins:   cfg.AllowedOrigins,
		logger:    log,
	}
	s.handlers.SetHealthChecker(cfg.HealthChecker)
	s.router = s.setupRouter()

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.Middleware) // before logging so every line carries the ID
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORSMiddleware(s.origins))

	r.Get("/health", s.handlers.HealthHandler)
	r.Head("/health", s.handlers.HealthHandler)
	r.Get("/health/live", s.handlers.LivenessHandler)
	r.Get("/health/ready", s.handlers.ReadinessHandler)
	r.Get("/health/startup", s.handlers.StartupHandler)

	r.Get("/.well-known/jwks.json", s.handlers.JWKSHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter))
		}

		r.Get("/algorithms", s.handlers.ListAlgorithmsHandler)
		r.Get("/algorithms/{name}", s.handlers.GetAlgorithmHandler)
		r.Post("/algorithms/{name}/sign", s.handlers.SignHandler)
		r.Post("/algorithms/{name}/verify", s.handlers.VerifyHandler)

		r.Post("/tokens", s.handlers.IssueTokenHandler)
		r.Post("/tokens/verify", s.handlers.VerifyTokenHandler)

		r.Get("/ids", s.handlers.IDsHandler)
	})

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln, over TLS when a TLS configuration is set.
func (s *Server) Serve(ln net.Listener) error {
	if s.tlsConfig != nil {
		s.logger.Info("Starting HTTPS server", logging.String("addr", ln.Addr().String()))
		if err := s.server.ServeTLS(ln, "", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server", logging.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the REST API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", logging.Error(err))
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// SetHealthChecker sets the health checker for the server.
func (s *Server) SetHealthChecker(checker HealthChecker) {
	s.handlers.SetHealthChecker(checker)
}
