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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/snowflake"
	"github.com/jeremyhahn/go-turbocharger/pkg/token"
)

// Common errors
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidName        = errors.New("invalid name")
	ErrInternalError      = errors.New("internal server error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// writeError writes an error response to the client.
func writeError(w http.ResponseWriter, err error, statusCode int) {
	writeJSON(w, ErrorResponse{Error: err.Error(), Code: statusCode}, statusCode)
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, err error, message string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: err.Error(), Message: message, Code: statusCode}, statusCode)
}

// mapErrorToStatusCode maps errors to HTTP status codes.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownAlgorithm),
		errors.Is(err, registry.ErrUnknownBundle):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, registry.ErrNoTokenAlgorithm):
		return http.StatusBadRequest
	case errors.Is(err, algorithm.ErrVerifyOnly),
		errors.Is(err, token.ErrCannotSign):
		return http.StatusConflict
	case errors.Is(err, algorithm.ErrSignatureVerification),
		errors.Is(err, token.ErrAlgorithmMismatch),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, snowflake.ErrClockMovedBackwards):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError maps the error to a status code and writes the error response.
func handleError(w http.ResponseWriter, err error) {
	writeError(w, err, mapErrorToStatusCode(err))
}

// writeJSON writes a JSON response with the given status code. The header
// is already sent when encoding fails, so the error is dropped.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
