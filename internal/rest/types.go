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
	"github.com/jeremyhahn/go-turbocharger/pkg/health"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Algorithms int    `json:"algorithms"`
}

// HealthCheckResponse represents the response for health probe endpoints.
type HealthCheckResponse struct {
	// Status is the overall health status
	Status health.Status `json:"status"`
	// Message provides additional context
	Message string `json:"message,omitempty"`
	// Checks contains individual check results (for readiness)
	Checks []health.CheckResult `json:"checks,omitempty"`
}

// AlgorithmInfo describes one configured algorithm.
type AlgorithmInfo struct {
	Name      string `json:"name"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	CanSign   bool   `json:"can_sign"`
}

// ListAlgorithmsResponse represents the response for listing algorithms.
type ListAlgorithmsResponse struct {
	Algorithms []AlgorithmInfo `json:"algorithms"`
}

// SignRequest carries the base64url header and payload segments of a JWS.
type SignRequest struct {
	Header  string `json:"header"`
	Payload string `json:"payload"`
}

// SignResponse represents the response for signing.
type SignResponse struct {
	Signature string `json:"signature"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
}

// VerifyRequest represents a signature verification request.
type VerifyRequest struct {
	Header    string `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// VerifyResponse represents the response for verification.
type VerifyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// IssueTokenRequest represents a token issue request. An empty Algorithm
// selects the configured token algorithm.
type IssueTokenRequest struct {
	Algorithm string         `json:"algorithm,omitempty"`
	Subject   string         `json:"subject"`
	Claims    map[string]any `json:"claims,omitempty"`
}

// IssueTokenResponse represents the response for token issue.
type IssueTokenResponse struct {
	Token string `json:"token"`
}

// VerifyTokenRequest represents a token verification request.
type VerifyTokenRequest struct {
	Algorithm string `json:"algorithm,omitempty"`
	Token     string `json:"token"`
}

// VerifyTokenResponse represents the response for token verification.
type VerifyTokenResponse struct {
	Valid   bool           `json:"valid"`
	Claims  map[string]any `json:"claims,omitempty"`
	Message string         `json:"message,omitempty"`
}

// IDsResponse carries Snowflake IDs as decimal strings so JavaScript
// clients do not lose precision.
type IDsResponse struct {
	IDs []string `json:"ids"`
}
