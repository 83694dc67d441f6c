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

// Package ratelimit applies a per-client token bucket to HTTP requests.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RequestsPerMinute sets the sustained rate limit.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// Burst allows short bursts above the sustained rate. Defaults to
	// RequestsPerMinute.
	Burst int `yaml:"burst" json:"burst"`

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy" json:"trust_proxy"`

	// MaxIdle is how long a client can be idle before its bucket is
	// dropped. Defaults to 30 minutes.
	MaxIdle time.Duration `yaml:"max_idle" json:"max_idle"`
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	enabled bool
	trust   bool
	maxIdle time.Duration
	now     func() time.Time
}

// New creates a limiter. A nil config disables limiting.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}
	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerMinute
	}
	maxIdle := config.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 30 * time.Minute
	}
	return &Limiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:   burst,
		enabled: config.Enabled && config.RequestsPerMinute > 0,
		trust:   config.TrustProxy,
		maxIdle: maxIdle,
		now:     time.Now,
	}
}

// Allow reports whether a request from clientID is within its limit.
func (l *Limiter) Allow(clientID string) bool {
	if !l.enabled {
		return true
	}
	l.mu.Lock()
	c, ok := l.clients[clientID]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[clientID] = c
	}
	c.lastSeen = l.now()
	l.mu.Unlock()
	return c.limiter.Allow()
}

// Run drops idle clients every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if !l.enabled {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > l.maxIdle {
			delete(l.clients, id)
		}
	}
}

// ActiveClients returns the number of tracked clients.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(limiter.clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) clientIP(r *http.Request) string {
	if l.trust {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
