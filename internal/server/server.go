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

// Package server runs the turbod daemon: the REST API, the Prometheus
// endpoint, health probes and hot reload of key material.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/internal/rest"
	"github.com/jeremyhahn/go-turbocharger/pkg/health"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
	"github.com/jeremyhahn/go-turbocharger/pkg/ratelimit"
	"github.com/jeremyhahn/go-turbocharger/pkg/snowflake"
)

// Server is the turbod daemon.
type Server struct {
	configPath string
	fs         afero.Fs
	logOutput  io.Writer

	mu       sync.Mutex // serializes reloads
	config   *config.Config
	logger   *swapLogger
	registry atomic.Pointer[registry.Registry]

	ids           *snowflake.Generator
	healthChecker *health.Checker
	limiter       *ratelimit.Limiter
	restServer    *rest.Server
	metricsServer *http.Server
	collector     *metrics.ResourceCollector

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithFs reads the configuration and key material from fs instead of the
// OS filesystem. Watching always uses the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Server) { s.fs = fs }
}

// WithLogOutput sets where logs are written (default stderr).
func WithLogOutput(w io.Writer) Option {
	return func(s *Server) { s.logOutput = w }
}

// New loads the configuration at configPath and builds the initial
// registry. Any failure here is fatal; later reload failures are not.
func New(configPath string, opts ...Option) (*Server, error) {
	s := &Server{
		configPath: configPath,
		fs:         afero.NewOsFs(),
		logOutput:  os.Stderr,
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := config.LoadFs(s.fs, configPath)
	if err != nil {
		return nil, err
	}
	log, err := s.newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	s.config = cfg
	s.logger = newSwapLogger(log)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.initialize(); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

func (s *Server) newLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: s.logOutput,
	})
}

func (s *Server) initialize() error {
	cfg := s.config

	epoch, err := cfg.Snowflake.EpochTime()
	if err != nil {
		return err
	}
	s.ids, err = snowflake.New(cfg.Snowflake.WorkerID, cfg.Snowflake.DatacenterID, snowflake.WithEpoch(epoch))
	if err != nil {
		return fmt.Errorf("failed to create ID generator: %w", err)
	}

	reg, err := s.buildRegistry(s.ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}
	s.registry.Store(reg)
	metrics.SetAlgorithmsConfigured(reg.Len())

	if cfg.Health.Enabled {
		s.healthChecker = health.NewChecker(cfg.Health.Timeout)
		s.registerAlgorithmChecks(reg)
	}

	s.limiter = ratelimit.New(&cfg.RateLimit)

	tlsConfig, err := s.buildTLSConfig(reg)
	if err != nil {
		return err
	}

	restCfg := &rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        getBuildVersion(),
		Registry:       s.Registry,
		IDs:            s.ids,
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		TLSConfig:      tlsConfig,
		Logger:         s.logger.With(logging.String("component", "rest")),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	}
	if s.limiter.IsEnabled() {
		restCfg.RateLimiter = s.limiter
	}
	if s.healthChecker != nil {
		restCfg.HealthChecker = s.healthChecker
	}
	s.restServer, err = rest.NewServer(restCfg)
	if err != nil {
		return fmt.Errorf("failed to create REST server: %w", err)
	}

	s.logger.Info("Server initialized",
		logging.Int("algorithms", reg.Len()),
		logging.Bool("tls", tlsConfig != nil),
		logging.Bool("ratelimit", s.limiter.IsEnabled()))
	return nil
}

// buildTLSConfig takes the server certificate from the named bundle, or
// from the configured PEM files when no bundle is named.
func (s *Server) buildTLSConfig(reg *registry.Registry) (*tls.Config, error) {
	if !s.config.TLS.Enabled {
		return nil, nil
	}
	bundle := s.config.TLS.Bundle
	if bundle == "" {
		return s.config.TLS.Build(nil)
	}
	cert, err := reg.TLSCertificate(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate from bundle %s: %w", bundle, err)
	}
	tlsConfig, err := s.config.TLS.Build(cert)
	if err != nil {
		return nil, err
	}
	// Serve whatever the current registry holds so a reload rotates the
	// certificate without restarting the listener.
	tlsConfig.Certificates = nil
	tlsConfig.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return s.Registry().TLSCertificate(bundle)
	}
	return tlsConfig, nil
}

// Registry returns the current registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry.Load()
}

// Handler returns the REST API handler.
func (s *Server) Handler() http.Handler {
	return s.restServer.Handler()
}

// HealthChecker returns the health checker, or nil when health is disabled.
func (s *Server) HealthChecker() *health.Checker {
	return s.healthChecker
}

// Start starts the API, the metrics endpoint and the background workers.
// It returns once everything is running.
func (s *Server) Start() error {
	s.logger.Info("Starting turbod...", logging.String("config", s.configPath))
	cfg := s.config

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.StartListener(ln)
}

// StartListener is Start with the API listener supplied by the caller.
func (s *Server) StartListener(ln net.Listener) error {
	cfg := s.config

	if cfg.Metrics.Enabled {
		s.initializeMetrics()
		s.startMetrics(cfg.Server.Host, cfg.Metrics)
	} else {
		metrics.Disable()
	}

	if s.limiter.IsEnabled() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.limiter.Run(s.ctx, time.Minute)
		}()
	}

	if cfg.Watch.Enabled {
		if err := s.startWatcher(); err != nil {
			s.logger.Error("Failed to start watcher", logging.Error(err))
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.restServer.Serve(ln); err != nil {
			s.logger.Error("REST server error", logging.Error(err))
		}
	}()

	if s.healthChecker != nil {
		s.healthChecker.MarkStarted()
	}
	s.logger.Info("All servers started successfully", logging.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) initializeMetrics() {
	metrics.Enable()
	s.collector = metrics.NewResourceCollector(30 * time.Second)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.collector.Run(s.ctx)
	}()
}

// startMetrics serves the Prometheus registry on its own port.
func (s *Server) startMetrics(host string, cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	s.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	s.logger.Info("Starting metrics server",
		logging.String("addr", s.metricsServer.Addr),
		logging.String("path", cfg.Path))

	srv := s.metricsServer
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server error", logging.Error(err))
		}
	}()
}

// Shutdown stops the listeners and waits for the workers to exit.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down server...")
	if s.healthChecker != nil {
		s.healthChecker.MarkNotStarted()
	}

	s.mu.Lock()
	timeout := s.config.Server.ShutdownTimeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.restServer.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("All servers stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("Shutdown timeout exceeded, forcing stop")
	}

	close(s.shutdownCh)
	return errors.Join(errs...)
}

// WaitForShutdown blocks until the server is shut down
func (s *Server) WaitForShutdown() {
	<-s.shutdownCh
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// getBuildVersion retrieves the version from build information
func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
