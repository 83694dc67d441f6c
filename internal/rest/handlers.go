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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/health"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
)

const (
	maxBodyBytes = 1 << 20

	// MaxIDsPerRequest caps the count parameter of GET /api/v1/ids.
	MaxIDsPerRequest = 1000
)

// HandlerContext holds what the handlers share.
type HandlerContext struct {
	// Version is the API version
	Version string
	// Registry returns the current registry
	Registry func() *registry.Registry
	// IDs generates Snowflake IDs
	IDs IDGenerator

	healthChecker atomic.Pointer[healthCheckerBox]
	logger        logging.Logger
}

type healthCheckerBox struct{ HealthChecker }

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	NextN(n int) ([]int64, error)
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(reg func() *registry.Registry, ids IDGenerator, version string, logger logging.Logger) *HandlerContext {
	return &HandlerContext{
		Version:  version,
		Registry: reg,
		IDs:      ids,
		logger:   logging.OrNop(logger),
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	if checker == nil {
		h.healthChecker.Store(nil)
		return
	}
	h.healthChecker.Store(&healthCheckerBox{checker})
}

func (h *HandlerContext) checker() HealthChecker {
	if b := h.healthChecker.Load(); b != nil {
		return b.HealthChecker
	}
	return nil
}

func (h *HandlerContext) registry() (*registry.Registry, error) {
	if h.Registry == nil {
		return nil, ErrServiceUnavailable
	}
	reg := h.Registry()
	if reg == nil {
		return nil, ErrServiceUnavailable
	}
	return reg, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func nameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return name, nil
}

func algorithmInfo(name string, alg algorithm.Algorithm) AlgorithmInfo {
	return AlgorithmInfo{
		Name:      name,
		Algorithm: alg.Name(),
		KeyID:     alg.KeyID(),
		CanSign:   alg.CanSign(),
	}
}

// HealthHandler handles GET /health requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Version: h.Version}
	if reg, err := h.registry(); err == nil {
		resp.Algorithms = reg.Len()
	} else {
		resp.Status = "starting"
	}
	writeJSON(w, resp, http.StatusOK)
}

// JWKSHandler handles GET /.well-known/jwks.json requests.
func (h *HandlerContext) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, reg.JWKS(), http.StatusOK)
}

// ListAlgorithmsHandler handles GET /api/v1/algorithms requests.
func (h *HandlerContext) ListAlgorithmsHandler(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}

	resp := ListAlgorithmsResponse{Algorithms: make([]AlgorithmInfo, 0, reg.Len())}
	for _, name := range reg.Names() {
		alg, err := reg.Algorithm(name)
		if err != nil {
			continue
		}
		resp.Algorithms = append(resp.Algorithms, algorithmInfo(name, alg))
	}
	writeJSON(w, resp, http.StatusOK)
}

// GetAlgorithmHandler handles GET /api/v1/algorithms/{name} requests.
func (h *HandlerContext) GetAlgorithmHandler(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		handleError(w, err)
		return
	}
	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	alg, err := reg.Algorithm(name)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, algorithmInfo(name, alg), http.StatusOK)
}

// SignHandler handles POST /api/v1/algorithms/{name}/sign requests.
func (h *HandlerContext) SignHandler(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		handleError(w, err)
		return
	}
	var req SignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Header == "" || req.Payload == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "header and payload are required", http.StatusBadRequest)
		return
	}

	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	alg, err := reg.Algorithm(name)
	if err != nil {
		handleError(w, err)
		return
	}
	sig, err := reg.Sign(name, req.Header, req.Payload)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Sign failed",
			logging.String("algorithm", name),
			logging.Error(err))
		handleError(w, err)
		return
	}
	writeJSON(w, SignResponse{Signature: sig, Algorithm: alg.Name(), KeyID: alg.KeyID()}, http.StatusOK)
}

// VerifyHandler handles POST /api/v1/algorithms/{name}/verify requests. A
// signature that does not verify is reported as valid=false, not as an
// error.
func (h *HandlerContext) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		handleError(w, err)
		return
	}
	var req VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Header == "" || req.Payload == "" || req.Signature == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "header, payload and signature are required", http.StatusBadRequest)
		return
	}

	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	err = reg.Verify(name, req.Header, req.Payload, req.Signature)
	switch {
	case err == nil:
		writeJSON(w, VerifyResponse{Valid: true}, http.StatusOK)
	case errors.Is(err, algorithm.ErrSignatureVerification):
		writeJSON(w, VerifyResponse{Valid: false, Message: err.Error()}, http.StatusOK)
	default:
		handleError(w, err)
	}
}

// IssueTokenHandler handles POST /api/v1/tokens requests.
func (h *HandlerContext) IssueTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Algorithm != "" {
		if err := ValidateName(req.Algorithm); err != nil {
			handleError(w, fmt.Errorf("%w: %v", ErrInvalidName, err))
			return
		}
	}

	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	tok, err := reg.IssueToken(req.Algorithm, req.Subject, req.Claims)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Token issue failed",
			logging.String("algorithm", req.Algorithm),
			logging.Error(err))
		handleError(w, err)
		return
	}
	writeJSON(w, IssueTokenResponse{Token: tok}, http.StatusCreated)
}

// VerifyTokenHandler handles POST /api/v1/tokens/verify requests. A token
// that fails verification is reported as valid=false.
func (h *HandlerContext) VerifyTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Token == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "token is required", http.StatusBadRequest)
		return
	}

	reg, err := h.registry()
	if err != nil {
		handleError(w, err)
		return
	}
	claims, err := reg.VerifyToken(req.Algorithm, req.Token)
	if err != nil {
		if mapErrorToStatusCode(err) == http.StatusUnauthorized {
			writeJSON(w, VerifyTokenResponse{Valid: false, Message: err.Error()}, http.StatusOK)
			return
		}
		handleError(w, err)
		return
	}
	writeJSON(w, VerifyTokenResponse{Valid: true, Claims: claims}, http.StatusOK)
}

// IDsHandler handles GET /api/v1/ids requests.
func (h *HandlerContext) IDsHandler(w http.ResponseWriter, r *http.Request) {
	if h.IDs == nil {
		writeErrorWithMessage(w, ErrServiceUnavailable, "ID generation is not configured", http.StatusServiceUnavailable)
		return
	}

	count := 1
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxIDsPerRequest {
			writeErrorWithMessage(w, ErrInvalidRequest,
				fmt.Sprintf("count must be between 1 and %d", MaxIDsPerRequest), http.StatusBadRequest)
			return
		}
		count = n
	}

	ids, err := h.IDs.NextN(count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ID generation failed", logging.Error(err))
		handleError(w, err)
		return
	}
	metrics.RecordSnowflakeIDs(len(ids))

	resp := IDsResponse{IDs: make([]string, len(ids))}
	for i, id := range ids {
		resp.IDs[i] = strconv.FormatInt(id, 10)
	}
	writeJSON(w, resp, http.StatusOK)
}
