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

// Package registry assembles the configured key bundles, algorithms and
// token codecs into one immutable snapshot.
package registry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
	"github.com/jeremyhahn/go-turbocharger/pkg/token"
)

var (
	// ErrUnknownAlgorithm is returned for an algorithm name that is not configured
	ErrUnknownAlgorithm = errors.New("registry: unknown algorithm")

	// ErrUnknownBundle is returned for a bundle name that is not configured
	ErrUnknownBundle = errors.New("registry: unknown bundle")

	// ErrNoTokenAlgorithm is returned when tokens are requested but
	// tokens.algorithm is not set
	ErrNoTokenAlgorithm = errors.New("registry: no token algorithm configured")
)

// Registry is an immutable snapshot built from one configuration.
type Registry struct {
	bundles    map[string]*keybundle.KeyBundle
	algorithms map[string]algorithm.Algorithm
	algBundle  map[string]string
	names      []string
	tokens     config.TokensConfig
}

// Builder builds registries. The opener reads key material and the resolver
// expands placeholders in bundle and algorithm settings.
type Builder struct {
	opener   keystore.Opener
	resolver *resource.Resolver
	logger   logging.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opener keystore.Opener, resolver *resource.Resolver, logger logging.Logger) *Builder {
	if resolver == nil {
		resolver = resource.NewResolver()
	}
	return &Builder{opener: opener, resolver: resolver, logger: logging.OrNop(logger)}
}

// Build loads every bundle and constructs every algorithm in cfg. Any
// failure aborts the build.
func (b *Builder) Build(ctx context.Context, cfg *config.Config) (*Registry, error) {
	start := time.Now()
	r := &Registry{
		bundles:    make(map[string]*keybundle.KeyBundle, len(cfg.Bundles)),
		algorithms: make(map[string]algorithm.Algorithm, len(cfg.Algorithms)),
		algBundle:  make(map[string]string, len(cfg.Algorithms)),
		tokens:     cfg.Tokens,
	}

	for _, name := range sortedKeys(cfg.Bundles) {
		bundle, err := b.buildBundle(ctx, name, cfg.Bundles[name])
		if err != nil {
			return nil, fmt.Errorf("bundle %q: %w", name, err)
		}
		r.bundles[name] = bundle
		b.logger.Debug("loaded bundle",
			logging.String("bundle", name),
			logging.String("source", bundle.Source().String()))
	}

	for _, name := range sortedKeys(cfg.Algorithms) {
		alg, err := b.buildAlgorithm(ctx, cfg.Algorithms[name], r.bundles)
		if err != nil {
			return nil, fmt.Errorf("algorithm %q: %w", name, err)
		}
		r.algorithms[name] = alg
		r.algBundle[name] = cfg.Algorithms[name].Bundle
		r.names = append(r.names, name)
		b.logger.Debug("configured algorithm",
			logging.String("algorithm", name),
			logging.String("jwt_alg", alg.Name()),
			logging.String("kid", alg.KeyID()),
			logging.Bool("can_sign", alg.CanSign()))
	}

	b.logger.Info("registry built",
		logging.Int("bundles", len(r.bundles)),
		logging.Int("algorithms", len(r.algorithms)),
		logging.Any("duration", time.Since(start)))
	return r, nil
}

func (b *Builder) resolve(ctx context.Context, values ...*string) error {
	for _, v := range values {
		resolved, err := b.resolver.Resolve(ctx, *v)
		if err != nil {
			return err
		}
		*v = resolved
	}
	return nil
}

func (b *Builder) buildBundle(ctx context.Context, name string, bc config.BundleConfig) (*keybundle.KeyBundle, error) {
	if err := b.resolve(ctx, &bc.Location, &bc.StorePassphrase, &bc.KeyPassphrase, &bc.Alias, &bc.Secret); err != nil {
		return nil, err
	}
	for i := range bc.Fallback {
		if err := b.resolve(ctx, &bc.Fallback[i]); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(bc.Source) {
	case config.SourceStore:
		format, err := keystore.ParseFormat(bc.Format)
		if err != nil {
			return nil, err
		}
		return keybundle.NewStoreBuilder(b.opener).
			Location(bc.Location).
			Fallback(bc.Fallback...).
			Format(format).
			StorePassphrase(bc.StorePassphrase).
			Alias(bc.Alias).
			KeyPassphrase(bc.KeyPassphrase).
			Build(ctx)
	case config.SourcePEM:
		return keybundle.NewPEMBuilder(b.opener).
			Location(bc.Location).
			KeyPassphrase(bc.KeyPassphrase).
			Build(ctx)
	case config.SourceSecret:
		return keybundle.FromSecret(name, []byte(bc.Secret))
	default:
		return nil, fmt.Errorf("%w: unknown source %q", keybundle.ErrInvalidArgument, bc.Source)
	}
}

func (b *Builder) buildAlgorithm(ctx context.Context, ac config.AlgorithmConfig, bundles map[string]*keybundle.KeyBundle) (algorithm.Algorithm, error) {
	if err := b.resolve(ctx, &ac.Secret, &ac.SM2PrivateKey, &ac.SM2PublicKey, &ac.SM2ID, &ac.KeyID); err != nil {
		return nil, err
	}

	family, err := algorithm.ParseFamily(ac.Family)
	if err != nil {
		return nil, err
	}
	spec := algorithm.Spec{
		Family:        family,
		KeyID:         ac.KeyID,
		SM2PrivateKey: ac.SM2PrivateKey,
		SM2PublicKey:  ac.SM2PublicKey,
		SM2ID:         ac.SM2ID,
	}
	switch family {
	case algorithm.FamilyRSA, algorithm.FamilyECDSA, algorithm.FamilyHMAC:
		if spec.Strength, err = algorithm.ParseStrength(ac.Strength); err != nil {
			return nil, err
		}
	case algorithm.FamilySM2:
		if spec.SM2Mode, err = algorithm.ParseSM2Mode(ac.SM2Mode); err != nil {
			return nil, err
		}
	}

	var bundle *keybundle.KeyBundle
	if ac.Bundle != "" {
		var ok bool
		if bundle, ok = bundles[ac.Bundle]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, ac.Bundle)
		}
	}
	return algorithm.New(spec, bundle, []byte(ac.Secret))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Names returns the configured algorithm names, sorted.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of configured algorithms.
func (r *Registry) Len() int {
	return len(r.algorithms)
}

// Algorithm returns the algorithm configured under name.
func (r *Registry) Algorithm(name string) (algorithm.Algorithm, error) {
	alg, ok := r.algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	return alg, nil
}

// Bundle returns the key bundle configured under name.
func (r *Registry) Bundle(name string) (*keybundle.KeyBundle, error) {
	b, ok := r.bundles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, name)
	}
	return b, nil
}

// TLSCertificate returns the bundle's chain and private key as a
// tls.Certificate for the API listener.
func (r *Registry) TLSCertificate(name string) (*tls.Certificate, error) {
	b, err := r.Bundle(name)
	if err != nil {
		return nil, err
	}
	if !b.HasPrivateKey() {
		return nil, fmt.Errorf("%w: bundle %s has no private key", keybundle.ErrInvalidArgument, name)
	}
	leaf, err := b.Leaf()
	if err != nil {
		return nil, err
	}
	cert := &tls.Certificate{PrivateKey: b.PrivateKey(), Leaf: leaf}
	for _, c := range b.CertificateChain() {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}
	return cert, nil
}

// Sign signs header and payload with the named algorithm and records metrics.
func (r *Registry) Sign(name, header, payload string) (string, error) {
	alg, err := r.Algorithm(name)
	if err != nil {
		return "", err
	}
	start := time.Now()
	sig, err := alg.Sign(header, payload)
	record(metrics.OpSign, alg.Name(), start, err)
	return sig, err
}

// Verify verifies a signature with the named algorithm and records metrics.
func (r *Registry) Verify(name, header, payload, signature string) error {
	alg, err := r.Algorithm(name)
	if err != nil {
		return err
	}
	start := time.Now()
	err = alg.Verify(header, payload, signature)
	record(metrics.OpVerify, alg.Name(), start, err)
	return err
}

func record(op, alg string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(op, alg, ErrorType(err))
	}
	metrics.RecordOperation(op, alg, status, time.Since(start).Seconds())
}

// ErrorType classifies err for the errors_total metric.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, algorithm.ErrVerifyOnly), errors.Is(err, token.ErrCannotSign):
		return "verify_only"
	case errors.Is(err, algorithm.ErrSignatureVerification):
		return "invalid_signature"
	case errors.Is(err, algorithm.ErrSignatureGeneration):
		return "signature_generation"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, token.ErrAlgorithmMismatch):
		return "algorithm_mismatch"
	default:
		return "other"
	}
}

func (r *Registry) tokenAlgorithm(name string) (algorithm.Algorithm, error) {
	if name == "" {
		name = r.tokens.Algorithm
	}
	if name == "" {
		return nil, ErrNoTokenAlgorithm
	}
	return r.Algorithm(name)
}

func (r *Registry) tokenOptions() token.Options {
	return token.Options{
		Issuer:   r.tokens.Issuer,
		Audience: r.tokens.Audience,
		TTL:      r.tokens.TTL,
		Leeway:   r.tokens.Leeway,
	}
}

// IssueToken signs a token for subject with the named algorithm, or the
// configured token algorithm when name is empty.
func (r *Registry) IssueToken(name, subject string, claims map[string]any) (string, error) {
	alg, err := r.tokenAlgorithm(name)
	if err != nil {
		return "", err
	}
	start := time.Now()
	var signed string
	enc, err := token.NewEncoder(alg, r.tokenOptions())
	if err == nil {
		signed, err = enc.Issue(subject, claims)
	}
	record(metrics.OpTokenIssue, alg.Name(), start, err)
	return signed, err
}

// VerifyToken verifies tok and returns its claims.
func (r *Registry) VerifyToken(name, tok string) (jwt.MapClaims, error) {
	alg, err := r.tokenAlgorithm(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	claims := jwt.MapClaims{}
	err = token.NewDecoder(alg, r.tokenOptions()).Decode(tok, claims)
	record(metrics.OpTokenVerify, alg.Name(), start, err)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// JWKS returns the publishable public keys of every algorithm. Certificate
// chains from store and PEM bundles are attached as x5c.
func (r *Registry) JWKS() jose.JSONWebKeySet {
	sources := make([]token.KeySource, 0, len(r.names))
	for _, name := range r.names {
		src := token.KeySource{Algorithm: r.algorithms[name]}
		if b, ok := r.bundles[r.algBundle[name]]; ok && !b.IsSecret() {
			src.Certificates = b.CertificateChain()
		}
		sources = append(sources, src)
	}
	return token.JWKS(sources...)
}
