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

// Package metrics provides Prometheus instrumentation for go-turbocharger:
// signing and verification counters, key container loads, Snowflake ID
// generation, HTTP traffic and process gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics
	Namespace = "turbo"

	// Label names
	LabelOperation  = "operation"
	LabelAlgorithm  = "algorithm"
	LabelStatus     = "status"
	LabelErrorType  = "error_type"
	LabelFormat     = "format"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSign        = "sign"
	OpVerify      = "verify"
	OpTokenIssue  = "token_issue"
	OpTokenVerify = "token_verify"
	OpLoad        = "load"
	OpReload      = "reload"
	OpHealthCheck = "health_check"
)

var (
	// OperationsTotal tracks operations by type, algorithm, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of operations by type, algorithm, and status",
		},
		[]string{LabelOperation, LabelAlgorithm, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelOperation, LabelAlgorithm},
	)

	// ErrorsTotal tracks errors by operation, algorithm, and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, algorithm, and error type",
		},
		[]string{LabelOperation, LabelAlgorithm, LabelErrorType},
	)

	// KeystoreLoadsTotal tracks key container loads by format and status.
	KeystoreLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "keystore",
			Name:      "loads_total",
			Help:      "Total number of key container loads by format and status",
		},
		[]string{LabelFormat, LabelStatus},
	)

	// SnowflakeIDsTotal counts generated Snowflake IDs.
	SnowflakeIDsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "snowflake",
			Name:      "ids_generated_total",
			Help:      "Total number of Snowflake IDs generated",
		},
	)

	// HTTPRequestsTotal tracks HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// AlgorithmsConfigured is the number of algorithms in the active registry.
	AlgorithmsConfigured = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "algorithms_configured",
			Help:      "Number of configured algorithms",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration in seconds.
//
// Example:
//
//	start := time.Now()
//	sig, err := alg.Sign(header, payload)
//	status := metrics.StatusSuccess
//	if err != nil {
//	    status = metrics.StatusError
//	}
//	metrics.RecordOperation(metrics.OpSign, alg.Name(), status, time.Since(start).Seconds())
func RecordOperation(operation, algorithm, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, algorithm, status).Inc()
	OperationDuration.WithLabelValues(operation, algorithm).Observe(duration)
}

// RecordError records an error. errorType should be specific, for example
// "invalid_signature" or "key_material".
func RecordError(operation, algorithm, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, algorithm, errorType).Inc()
}

// RecordKeystoreLoad records a key container load.
func RecordKeystoreLoad(format, status string) {
	if !enabled.Load() {
		return
	}
	KeystoreLoadsTotal.WithLabelValues(format, status).Inc()
}

// RecordSnowflakeIDs adds n generated IDs.
func RecordSnowflakeIDs(n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	SnowflakeIDsTotal.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// SetAlgorithmsConfigured sets the configured algorithm gauge.
func SetAlgorithmsConfigured(n int) {
	if !enabled.Load() {
		return
	}
	AlgorithmsConfigured.Set(float64(n))
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
