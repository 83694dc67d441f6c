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

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Disabled(t *testing.T) {
	for _, cfg := range []*Config{nil, {Enabled: false, RequestsPerMinute: 1}, {Enabled: true}} {
		l := New(cfg)
		assert.False(t, l.IsEnabled())
		for i := 0; i < 100; i++ {
			assert.True(t, l.Allow("client"))
		}
	}
}

func TestLimiter_BurstPerClient(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("a"), "request %d", i)
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.ActiveClients())
}

func TestLimiter_Cleanup(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, MaxIdle: time.Minute})
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(2 * time.Minute)
	l.Allow("new")
	l.cleanup()

	assert.Equal(t, 1, l.ActiveClients())
}

func TestLimiter_RunStops(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 1})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:1234").Code)
	rec := do("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:1234").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", false, nil, "192.0.2.1:443", "192.0.2.1"},
		{"headers ignored", false, map[string]string{"X-Forwarded-For": "203.0.113.9"}, "192.0.2.1:443", "192.0.2.1"},
		{"forwarded first hop", true, map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "192.0.2.1:443", "203.0.113.9"},
		{"real ip", true, map[string]string{"X-Real-IP": "203.0.113.7"}, "192.0.2.1:443", "203.0.113.7"},
		{"no port", false, nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&Config{Enabled: true, RequestsPerMinute: 60, TrustProxy: tt.trust})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, l.clientIP(req))
		})
	}
}
