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

package keybundle

import "errors"

var (
	// ErrInvalidArgument indicates missing builder fields or unusable PEM
	// input.
	ErrInvalidArgument = errors.New("keybundle: invalid argument")

	// ErrChainLength indicates Certificate was called on a bundle whose
	// chain does not hold exactly one certificate.
	ErrChainLength = errors.New("keybundle: certificate chain length is not 1")

	// ErrNoCertificate indicates the bundle carries no certificate.
	ErrNoCertificate = errors.New("keybundle: no certificate")

	// ErrKeyMismatch indicates the private key does not belong to the leaf
	// certificate.
	ErrKeyMismatch = errors.New("keybundle: private key does not match certificate")
)
