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
	"net/http"

	"github.com/jeremyhahn/go-turbocharger/pkg/health"
)

// LivenessHandler handles GET /health/live requests.
//
// Liveness probes determine if the service is alive and should be restarted.
// This endpoint should ONLY fail if the service is in an unrecoverable state.
//
// Kubernetes documentation:
// https://kubernetes.io/docs/tasks/configure-pod-container/configure-liveness-readiness-startup-probes/
func (h *HandlerContext) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	checker := h.checker()
	if checker == nil {
		// If no health checker configured, assume healthy
		resp := HealthCheckResponse{
			Status:  health.StatusHealthy,
			Message: "Service is alive",
		}
		writeJSON(w, resp, http.StatusOK)
		return
	}

	result := checker.Live(r.Context())

	resp := HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, resp, statusCode)
}

// ReadinessHandler handles GET /health/ready requests. It runs every
// registered check, which includes one sign-then-verify self-test per
// configured algorithm.
func (h *HandlerContext) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := h.registry(); err != nil {
		writeJSON(w, HealthCheckResponse{
			Status:  health.StatusUnhealthy,
			Message: "Registry not loaded",
		}, http.StatusServiceUnavailable)
		return
	}

	checker := h.checker()
	if checker == nil {
		writeJSON(w, HealthCheckResponse{
			Status:  health.StatusHealthy,
			Message: "Service is ready",
		}, http.StatusOK)
		return
	}

	results := checker.Ready(r.Context())
	resp := HealthCheckResponse{
		Status: health.AggregateStatus(results),
		Checks: results,
	}

	// Degraded still serves traffic; verify-only algorithms land here.
	statusCode := http.StatusOK
	switch resp.Status {
	case health.StatusHealthy:
		resp.Message = "All checks passed"
	case health.StatusDegraded:
		resp.Message = "Service is degraded"
	case health.StatusUnhealthy:
		resp.Message = "One or more checks failed"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, resp, statusCode)
}

// StartupHandler handles GET /health/startup requests.
//
// Startup probes determine if the application has finished initializing.
// Kubernetes will not check liveness or readiness until startup succeeds.
//
// This is useful for applications with long initialization times.
// Once the startup probe succeeds, liveness and readiness probes take over.
//
// Kubernetes documentation:
// https://kubernetes.io/docs/tasks/configure-pod-container/configure-liveness-readiness-startup-probes/
func (h *HandlerContext) StartupHandler(w http.ResponseWriter, r *http.Request) {
	checker := h.checker()
	if checker == nil {
		// If no health checker configured, assume started
		resp := HealthCheckResponse{
			Status:  health.StatusHealthy,
			Message: "Service has started",
		}
		writeJSON(w, resp, http.StatusOK)
		return
	}

	result := checker.Startup(r.Context())

	resp := HealthCheckResponse{
		Status:  result.Status,
		Message: result.Message,
	}

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		// Service not yet started - return 503
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, resp, statusCode)
}
