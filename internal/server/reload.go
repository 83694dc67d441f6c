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

package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/pkg/health"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
	"github.com/jeremyhahn/go-turbocharger/pkg/watch"
)

const algorithmCheckPrefix = "algorithm:"

func (s *Server) buildRegistry(ctx context.Context, cfg *config.Config) (*registry.Registry, error) {
	resolver, err := registry.NewResolver(cfg.Resolvers, s.fs)
	if err != nil {
		return nil, err
	}
	opener := resource.NewOpener(
		resource.WithFs(s.fs),
		resource.WithLogger(s.logger),
	)
	return registry.NewBuilder(opener, resolver, s.logger.With(logging.String("component", "registry"))).
		Build(ctx, cfg)
}

// registerAlgorithmChecks replaces the readiness self-tests with one per
// algorithm of reg.
func (s *Server) registerAlgorithmChecks(reg *registry.Registry) {
	if s.healthChecker == nil {
		return
	}
	checks := make(map[string]health.CheckFunc, reg.Len())
	for _, name := range reg.Names() {
		alg, err := reg.Algorithm(name)
		if err != nil {
			continue
		}
		checks[name] = health.AlgorithmCheck(alg)
	}
	s.healthChecker.ReplaceChecks(algorithmCheckPrefix, checks)
}

// Reload re-reads the configuration file and rebuilds the registry. On any
// failure the running registry and logger are kept. Listener settings
// (address, TLS files, rate limits) only change on restart.
func (s *Server) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.logger.Info("Reloading configuration...", logging.String("config", s.configPath))

	err := s.reload(ctx)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpReload, "", registry.ErrorType(err))
		s.logger.Error("Reload failed, keeping previous configuration", logging.Error(err))
	}
	metrics.RecordOperation(metrics.OpReload, "", status, time.Since(start).Seconds())
	return err
}

func (s *Server) reload(ctx context.Context) error {
	cfg, err := config.LoadFs(s.fs, s.configPath)
	if err != nil {
		return err
	}

	reg, err := s.buildRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}

	if err := s.reloadLogging(cfg); err != nil {
		return fmt.Errorf("failed to reload logging configuration: %w", err)
	}

	s.registry.Store(reg)
	s.registerAlgorithmChecks(reg)
	metrics.SetAlgorithmsConfigured(reg.Len())
	s.config = cfg

	s.logger.Info("Configuration reloaded successfully", logging.Int("algorithms", reg.Len()))
	return nil
}

// reloadLogging updates the logging configuration
func (s *Server) reloadLogging(cfg *config.Config) error {
	if cfg.Logging == s.config.Logging {
		return nil
	}
	newLogger, err := s.newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	s.logger.Info("Updating logging configuration",
		logging.String("old_level", s.config.Logging.Level),
		logging.String("new_level", cfg.Logging.Level),
		logging.String("old_format", s.config.Logging.Format),
		logging.String("new_format", cfg.Logging.Format))
	s.logger.Swap(newLogger)
	return nil
}

// watchPaths returns the configuration file, the configured watch paths and
// every local bundle location that exists.
func (s *Server) watchPaths(cfg *config.Config) []string {
	candidates := append([]string{s.configPath}, cfg.Watch.Paths...)
	for _, name := range sortedNames(cfg.Bundles) {
		b := cfg.Bundles[name]
		for _, loc := range append([]string{b.Location}, b.Fallback...) {
			if p, ok := localPath(loc); ok {
				candidates = append(candidates, p)
			}
		}
	}

	var paths []string
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err != nil {
			s.logger.Debug("not watching missing path", logging.String("path", abs))
			continue
		}
		if !slices.Contains(paths, abs) {
			paths = append(paths, abs)
		}
	}
	return paths
}

// localPath reports the filesystem path of a bundle location. Remote, inline
// and unresolved locations have none.
func localPath(location string) (string, bool) {
	switch {
	case location == "",
		strings.Contains(location, "${"),
		strings.Contains(location, "://") && !strings.HasPrefix(location, "file://"),
		strings.HasPrefix(location, "base64:"):
		return "", false
	}
	p := strings.TrimPrefix(location, "file:")
	if strings.HasPrefix(p, "//") {
		p = p[2:]
	}
	return p, true
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// startWatcher reloads when the configuration file or key material changes.
// Events are coalesced so a burst of writes triggers one reload. It returns
// once every path is registered, or with the error that stopped the watcher.
func (s *Server) startWatcher() error {
	paths := s.watchPaths(s.config)
	if len(paths) == 0 {
		return watch.ErrNoPaths
	}

	trigger := make(chan struct{}, 1)
	ready := make(chan struct{})
	w, err := watch.New(func(ev watch.Event) {
		s.logger.Debug("file changed",
			logging.String("path", ev.Path),
			logging.String("op", ev.Op.String()))
		select {
		case trigger <- struct{}{}:
		default:
		}
	}, paths,
		watch.WithDebounce(s.config.Watch.Debounce),
		watch.WithLogger(s.logger.With(logging.String("component", "watch"))),
		watch.WithOnReady(func() { close(ready) }),
	)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runErr <- w.Run(s.ctx)
	}()

	select {
	case <-ready:
	case err := <-runErr:
		if err == nil {
			err = s.ctx.Err()
		}
		return err
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := <-runErr; err != nil {
			s.logger.Error("Watcher stopped", logging.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-trigger:
				_ = s.Reload(s.ctx)
			}
		}
	}()

	s.logger.Info("Watching for changes", logging.Strings("paths", paths))
	return nil
}
