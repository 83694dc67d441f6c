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

package algorithm

import (
	"crypto"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-turbocharger/pkg/encoding/base64url"
)

// Thumbprint returns the RFC 7638 SHA-256 thumbprint of pub as unpadded
// base64url. RSA, ECDSA (P-256, P-384, P-521) and Ed25519 keys are supported.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	return base64url.Encode(tp), nil
}

// defaultKeyID prefers an explicit ID, then the thumbprint of pub.
func defaultKeyID(explicit string, pub crypto.PublicKey) string {
	if explicit != "" {
		return explicit
	}
	if pub == nil {
		return ""
	}
	kid, err := Thumbprint(pub)
	if err != nil {
		return ""
	}
	return kid
}
