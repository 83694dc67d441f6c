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

package encoding

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8 format.
// A non-empty password produces a PBES2 encrypted structure.
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}
	return der, nil
}

// DecodePKCS8 decodes DER PKCS#8 data. Encrypted data requires the password.
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	key, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}
	return checkPrivateKey(key)
}

// ParsePrivateKeyDER parses an unencrypted private key in PKCS#8, PKCS#1 or
// SEC 1 form, in that order.
func ParsePrivateKeyDER(der []byte) (crypto.PrivateKey, error) {
	if len(der) == 0 {
		return nil, ErrInvalidData
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return checkPrivateKey(key)
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, ErrInvalidPrivateKey
}

func checkPrivateKey(key any) (crypto.PrivateKey, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidPrivateKey, key)
	}
}

// isPasswordError reports whether err came from a failed decryption.
// youmark/pkcs8 does not export sentinels.
func isPasswordError(err error) bool {
	return strings.Contains(err.Error(), "incorrect password")
}
