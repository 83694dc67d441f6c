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

// Package algorithm binds key material to a named signing primitive.
//
// Every Algorithm has a fixed short name ("RS256", "ES384", "HS512", "SM2")
// and signs the JWS signing input header + "." + payload. Signatures are
// emitted as unpadded base64url.
//
// Constructors validate the family, strength and key at construction and
// fail with ErrInvalidConfiguration. Signing failures are reported as
// ErrSignatureGeneration and mismatches as ErrSignatureVerification.
//
// Algorithms hold read-only key material and create fresh hash, MAC and
// signer state per call, so one instance may be shared across goroutines.
package algorithm

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding/base64url"
)

// Algorithm is a named sign/verify capability.
type Algorithm interface {
	// Name returns the JWT short name, for example "RS256".
	Name() string
	// KeyID returns the key identifier published with tokens and JWKS.
	KeyID() string
	// SignData signs data.
	SignData(data []byte) ([]byte, error)
	// VerifyData returns nil when sig is a valid signature over data.
	VerifyData(data, sig []byte) error
	// Sign signs header + "." + payload and returns unpadded base64url.
	Sign(header, payload string) (string, error)
	// Verify decodes signature and verifies it over header + "." + payload.
	Verify(header, payload, signature string) error
	// CanSign reports whether a signing key is present.
	CanSign() bool
}

// Family is an algorithm family.
type Family int

const (
	FamilyRSA Family = iota + 1
	FamilyECDSA
	FamilyHMAC
	FamilySM2
	FamilyGeneric
)

func (f Family) String() string {
	switch f {
	case FamilyRSA:
		return "rsa"
	case FamilyECDSA:
		return "ecdsa"
	case FamilyHMAC:
		return "hmac"
	case FamilySM2:
		return "sm2"
	case FamilyGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ParseFamily parses a case-insensitive family tag. "ec" and "hs" are
// accepted as aliases.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rsa", "rs":
		return FamilyRSA, nil
	case "ecdsa", "ec", "es":
		return FamilyECDSA, nil
	case "hmac", "hs":
		return FamilyHMAC, nil
	case "sm2":
		return FamilySM2, nil
	case "generic":
		return FamilyGeneric, nil
	default:
		return 0, configError("unknown family %q", s)
	}
}

// Strength is the digest size in bits.
type Strength int

const (
	Strength256 Strength = 256
	Strength384 Strength = 384
	Strength512 Strength = 512
)

// ParseStrength parses "256", "384" or "512".
func ParseStrength(s string) (Strength, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, configError("invalid strength %q", s)
	}
	strength := Strength(n)
	if _, err := strength.hash(); err != nil {
		return 0, err
	}
	return strength, nil
}

func (s Strength) hash() (crypto.Hash, error) {
	switch s {
	case Strength256:
		return crypto.SHA256, nil
	case Strength384:
		return crypto.SHA384, nil
	case Strength512:
		return crypto.SHA512, nil
	default:
		return 0, configError("unsupported strength %d", int(s))
	}
}

func (s Strength) String() string {
	return strconv.Itoa(int(s))
}

// Option configures an algorithm.
type Option func(*options)

type options struct {
	keyID  string
	sm2ID  []byte
	sm2Mod SM2Mode
}

func newOptions(opts []Option) *options {
	o := &options{sm2ID: []byte(DefaultSM2ID), sm2Mod: ModeASN1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithKeyID overrides the key identifier.
func WithKeyID(kid string) Option {
	return func(o *options) { o.keyID = kid }
}

// signingInput is the JWS signing input.
func signingInput(header, payload string) []byte {
	return []byte(header + "." + payload)
}

func signJWS(a Algorithm, header, payload string) (string, error) {
	sig, err := a.SignData(signingInput(header, payload))
	if err != nil {
		return "", err
	}
	return base64url.Encode(sig), nil
}

func verifyJWS(a Algorithm, header, payload, signature string) error {
	sig, err := base64url.Decode(signature)
	if err != nil {
		return verificationError(err)
	}
	return a.VerifyData(signingInput(header, payload), sig)
}

func digest(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}

func familyName(prefix string, s Strength) string {
	return fmt.Sprintf("%s%d", prefix, int(s))
}
