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

// Package keybundle combines a key with the certificates that describe it,
// independent of the container the material was loaded from.
package keybundle

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
)

// Source records how a bundle was built.
type Source int

const (
	// SourceStore bundles come from a PKCS#12 or JKS container.
	SourceStore Source = iota + 1
	// SourcePEM bundles come from PEM text.
	SourcePEM
	// SourceSecret bundles hold a symmetric secret.
	SourceSecret
	// SourceCertificate bundles hold certificates only.
	SourceCertificate
)

func (s Source) String() string {
	switch s {
	case SourceStore:
		return "store"
	case SourcePEM:
		return "pem"
	case SourceSecret:
		return "secret"
	case SourceCertificate:
		return "certificate"
	default:
		return "unknown"
	}
}

// KeyBundle is an immutable key plus certificate chain. It is safe to share
// between goroutines and algorithms.
type KeyBundle struct {
	source     Source
	alias      string
	chain      []*x509.Certificate
	privateKey crypto.PrivateKey
	secret     []byte
}

// FromStore loads the certificate and private key stored under alias. A
// secret key entry yields a SourceSecret bundle.
func FromStore(store *keystore.Store, alias, keyPassphrase string) (*KeyBundle, error) {
	if store.IsSecretKeyEntry(alias) {
		secret, err := store.SecretKey(alias, keyPassphrase)
		if err != nil {
			return nil, err
		}
		return FromSecret(alias, secret)
	}

	cert, err := store.Certificate(alias)
	if err != nil {
		return nil, err
	}
	key, err := store.Key(alias, keyPassphrase)
	if err != nil {
		return nil, err
	}
	if err := checkKeyPair(key, cert); err != nil {
		return nil, err
	}
	return &KeyBundle{
		source:     SourceStore,
		alias:      alias,
		chain:      []*x509.Certificate{cert},
		privateKey: key,
	}, nil
}

// FromPEM parses certificates and an optional private key from PEM text.
// The first certificate is the leaf. An empty keyPassphrase means the key is
// not encrypted. Text without a key block yields a verify-only bundle.
func FromPEM(pemText []byte, keyPassphrase string) (*KeyBundle, error) {
	certs, err := encoding.DecodeCertificatesPEM(pemText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var password []byte
	if keyPassphrase != "" {
		password = []byte(keyPassphrase)
	}
	key, err := encoding.DecodePrivateKeyPEM(pemText, password)
	switch {
	case errors.Is(err, encoding.ErrNoPrivateKey):
		key = nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		if err := checkKeyPair(key, certs[0]); err != nil {
			return nil, err
		}
	}

	return &KeyBundle{
		source:     SourcePEM,
		chain:      certs,
		privateKey: key,
	}, nil
}

// FromCertificate builds a verify-only bundle.
func FromCertificate(chain ...*x509.Certificate) (*KeyBundle, error) {
	if len(chain) == 0 || chain[0] == nil {
		return nil, fmt.Errorf("%w: certificate is required", ErrInvalidArgument)
	}
	return &KeyBundle{
		source: SourceCertificate,
		chain:  append([]*x509.Certificate(nil), chain...),
	}, nil
}

// FromSecret builds a bundle around a symmetric secret.
func FromSecret(alias string, secret []byte) (*KeyBundle, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret is required", ErrInvalidArgument)
	}
	return &KeyBundle{
		source: SourceSecret,
		alias:  alias,
		secret: bytes.Clone(secret),
	}, nil
}

// Source reports how the bundle was built.
func (b *KeyBundle) Source() Source { return b.source }

// Alias returns the container alias, if any.
func (b *KeyBundle) Alias() string { return b.alias }

// Certificate returns the only certificate of the bundle.
func (b *KeyBundle) Certificate() (*x509.Certificate, error) {
	if len(b.chain) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrChainLength, len(b.chain))
	}
	return b.chain[0], nil
}

// Leaf returns the first certificate of the chain.
func (b *KeyBundle) Leaf() (*x509.Certificate, error) {
	if len(b.chain) == 0 {
		return nil, ErrNoCertificate
	}
	return b.chain[0], nil
}

// CertificateChain returns a copy of the chain, leaf first.
func (b *KeyBundle) CertificateChain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), b.chain...)
}

// PublicKey returns the public key of the leaf certificate.
func (b *KeyBundle) PublicKey() (crypto.PublicKey, error) {
	leaf, err := b.Leaf()
	if err != nil {
		return nil, err
	}
	return leaf.PublicKey, nil
}

// PrivateKey returns the private key, or nil for verify-only and secret
// bundles.
func (b *KeyBundle) PrivateKey() crypto.PrivateKey { return b.privateKey }

// HasPrivateKey reports whether the bundle can sign asymmetrically.
func (b *KeyBundle) HasPrivateKey() bool { return b.privateKey != nil }

// Secret returns a copy of the symmetric secret.
func (b *KeyBundle) Secret() []byte { return bytes.Clone(b.secret) }

// IsSecret reports whether the bundle holds a symmetric secret.
func (b *KeyBundle) IsSecret() bool { return b.source == SourceSecret }

func checkKeyPair(key crypto.PrivateKey, cert *x509.Certificate) error {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return fmt.Errorf("%w: %T is not a signer", ErrKeyMismatch, key)
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return ErrKeyMismatch
	}
	return nil
}
