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

package keystore

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-turbocharger/pkg/metrics"
	"github.com/spf13/afero"
)

// provider is the format-specific view over a decoded container.
type provider interface {
	aliases() []string
	contains(alias string) bool
	isKeyEntry(alias string) bool
	// key returns false when the entry is absent, holds no key, or the
	// passphrase does not open it.
	key(alias, passphrase string) (crypto.PrivateKey, bool)
	// secret is key's counterpart for symmetric key entries.
	secret(alias, passphrase string) ([]byte, bool)
	chain(alias string) ([]*x509.Certificate, bool)
}

// Store is a read-only handle over a loaded container. A Store is safe for
// concurrent use.
type Store struct {
	format   Format
	provider provider
}

// Load reads a container from r and decodes it. If r is an io.Closer it is
// closed before Load returns.
func Load(r io.Reader, format Format, storePassphrase string) (*Store, error) {
	if c, ok := r.(io.Closer); ok {
		defer CloseQuietly(c)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		metrics.RecordKeystoreLoad(format.String(), "io_error")
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	store, err := decode(data, format, storePassphrase)
	if err != nil {
		metrics.RecordKeystoreLoad(format.String(), "error")
		return nil, err
	}
	metrics.RecordKeystoreLoad(format.String(), "success")
	return store, nil
}

// LoadFile opens path on fs and loads it.
func LoadFile(fs afero.Fs, path string, format Format, storePassphrase string) (*Store, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return Load(f, format, storePassphrase)
}

func decode(data []byte, format Format, storePassphrase string) (*Store, error) {
	var (
		p   provider
		err error
	)
	switch format {
	case PKCS12:
		p, err = decodePKCS12(data, storePassphrase)
	case JKS:
		p, err = decodeJKS(bytes.NewReader(data), storePassphrase)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return &Store{format: format, provider: p}, nil
}

// Format returns the container format.
func (s *Store) Format() Format {
	return s.format
}

// Key returns the private key stored under alias. A missing alias, an entry
// without a key and a wrong passphrase all produce the same error.
func (s *Store) Key(alias, keyPassphrase string) (crypto.PrivateKey, error) {
	key, ok := s.provider.key(alias, keyPassphrase)
	if !ok {
		return nil, fmt.Errorf("%w: cannot find key with alias: %s", ErrKeyMaterial, alias)
	}
	return key, nil
}

// SecretKey returns the symmetric key stored under alias. It fails the same
// way Key does.
func (s *Store) SecretKey(alias, keyPassphrase string) ([]byte, error) {
	secret, ok := s.provider.secret(alias, keyPassphrase)
	if !ok {
		return nil, fmt.Errorf("%w: cannot find key with alias: %s", ErrKeyMaterial, alias)
	}
	return secret, nil
}

// IsSecretKeyEntry reports whether alias names a symmetric key entry.
func (s *Store) IsSecretKeyEntry(alias string) bool {
	_, ok := s.provider.secret(alias, "")
	return ok
}

// Certificate returns the leaf certificate of a key entry or the
// certificate of a trusted entry.
func (s *Store) Certificate(alias string) (*x509.Certificate, error) {
	chain, ok := s.provider.chain(alias)
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("%w: cannot find certificate with alias: %s", ErrKeyMaterial, alias)
	}
	return chain[0], nil
}

// CertificateChain returns the chain held for alias, leaf first.
func (s *Store) CertificateChain(alias string) ([]*x509.Certificate, error) {
	chain, ok := s.provider.chain(alias)
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("%w: cannot find certificate with alias: %s", ErrKeyMaterial, alias)
	}
	out := make([]*x509.Certificate, len(chain))
	copy(out, chain)
	return out, nil
}

// PublicKey returns the public key of the certificate stored under alias.
func (s *Store) PublicKey(alias string) (crypto.PublicKey, error) {
	cert, err := s.Certificate(alias)
	if err != nil {
		return nil, err
	}
	return cert.PublicKey, nil
}

// Aliases lists every entry. The order is provider defined.
func (s *Store) Aliases() []string {
	return s.provider.aliases()
}

// ContainsAlias reports whether alias names an entry.
func (s *Store) ContainsAlias(alias string) bool {
	return s.provider.contains(alias)
}

// IsKeyEntry reports whether alias names an entry that carries a private or
// secret key.
func (s *Store) IsKeyEntry(alias string) bool {
	return s.provider.isKeyEntry(alias)
}
