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

package token

import (
	"crypto"
	"crypto/x509"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
)

// publicKeyer is implemented by algorithms whose verification key can be
// published.
type publicKeyer interface {
	PublicKey() crypto.PublicKey
}

// KeySource is one algorithm to publish, with an optional certificate chain
// for the x5c member.
type KeySource struct {
	Algorithm    algorithm.Algorithm
	Certificates []*x509.Certificate
}

// JWKS returns the public keys of sources as a JWK set. Algorithms without
// a publishable public key, such as HMAC and SM2, are skipped.
func JWKS(sources ...KeySource) jose.JSONWebKeySet {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	for _, src := range sources {
		if src.Algorithm == nil {
			continue
		}
		pk, ok := src.Algorithm.(publicKeyer)
		if !ok {
			continue
		}
		jwk := jose.JSONWebKey{
			Key:          pk.PublicKey(),
			KeyID:        src.Algorithm.KeyID(),
			Algorithm:    src.Algorithm.Name(),
			Use:          "sig",
			Certificates: src.Certificates,
		}
		if !jwk.Valid() {
			continue
		}
		set.Keys = append(set.Keys, jwk)
	}
	return set
}

// Thumbprint returns the RFC 7638 SHA-256 thumbprint of pub as unpadded
// base64url. Algorithms use it as their default key ID.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	return algorithm.Thumbprint(pub)
}
