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

import "errors"

var (
	// ErrInvalidPrivateKey is returned when a private key is nil or of an unsupported type
	ErrInvalidPrivateKey = errors.New("encoding: invalid private key")

	// ErrInvalidCertificate is returned when a certificate is nil or cannot be parsed
	ErrInvalidCertificate = errors.New("encoding: invalid certificate")

	// ErrInvalidData is returned when data is nil, empty, or malformed
	ErrInvalidData = errors.New("encoding: invalid data")

	// ErrInvalidPassword is returned when an encrypted key cannot be decrypted
	ErrInvalidPassword = errors.New("encoding: invalid password")

	// ErrPasswordRequired is returned for an encrypted key without a password
	ErrPasswordRequired = errors.New("encoding: password required")

	// ErrInvalidPEMEncoding is returned when no PEM block can be decoded
	ErrInvalidPEMEncoding = errors.New("encoding: invalid PEM encoding")

	// ErrNoCertificates is returned when PEM text holds no CERTIFICATE block
	ErrNoCertificates = errors.New("encoding: no certificates found")

	// ErrNoPrivateKey is returned when PEM text holds no private key block
	ErrNoPrivateKey = errors.New("encoding: no private key found")
)
