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

package metrics

import (
	"context"
	"runtime"
	"time"
)

// ResourceCollector periodically updates the goroutine, memory and uptime
// gauges.
type ResourceCollector struct {
	interval time.Duration
	started  time.Time
}

// NewResourceCollector creates a collector that updates gauges every
// interval. Uptime is measured from this call.
func NewResourceCollector(interval time.Duration) *ResourceCollector {
	return &ResourceCollector{interval: interval, started: time.Now()}
}

// Run collects immediately and then at every tick until ctx is cancelled.
func (rc *ResourceCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.Collect()
		}
	}
}

// Collect performs a single collection.
func (rc *ResourceCollector) Collect() {
	if !IsEnabled() {
		return
	}
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	MemoryAllocBytes.Set(float64(memStats.Alloc))

	ServerUptime.Set(time.Since(rc.started).Seconds())
}
