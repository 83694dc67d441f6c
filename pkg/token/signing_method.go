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

// Package token issues and verifies JWTs with an algorithm.Algorithm and
// publishes public keys as a JWK set.
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
)

// SigningMethod implements jwt.SigningMethod on top of an Algorithm. The key
// argument golang-jwt passes to Sign and Verify is ignored; the Algorithm
// already holds its key material.
type SigningMethod struct {
	alg algorithm.Algorithm
}

// NewSigningMethod adapts alg for golang-jwt.
func NewSigningMethod(alg algorithm.Algorithm) *SigningMethod {
	return &SigningMethod{alg: alg}
}

// Alg returns the JWT algorithm name.
func (m *SigningMethod) Alg() string {
	return m.alg.Name()
}

// Sign signs the JWS signing input.
func (m *SigningMethod) Sign(signingString string, _ interface{}) ([]byte, error) {
	return m.alg.SignData([]byte(signingString))
}

// Verify verifies sig over the JWS signing input. Any verification failure
// is reported as jwt.ErrSignatureInvalid.
func (m *SigningMethod) Verify(signingString string, sig []byte, _ interface{}) error {
	if err := m.alg.VerifyData([]byte(signingString), sig); err != nil {
		if errors.Is(err, algorithm.ErrSignatureVerification) {
			return errors.Join(jwt.ErrSignatureInvalid, err)
		}
		return err
	}
	return nil
}
