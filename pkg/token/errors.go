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

import "errors"

var (
	// ErrAlgorithmMismatch indicates the token header names a different
	// algorithm than the decoder's.
	ErrAlgorithmMismatch = errors.New("token: algorithm mismatch")

	// ErrCannotSign indicates the encoder's algorithm is verify-only.
	ErrCannotSign = errors.New("token: algorithm cannot sign")
)
