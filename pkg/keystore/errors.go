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

import "errors"

var (
	// ErrKeyMaterial indicates a malformed container, a wrong passphrase or
	// a missing entry.
	ErrKeyMaterial = errors.New("keystore: key material error")

	// ErrIO indicates the container could not be read.
	ErrIO = errors.New("keystore: I/O failure")

	// ErrUnsupportedFormat indicates an unknown container format tag.
	ErrUnsupportedFormat = errors.New("keystore: unsupported format")

	// ErrNoLocations indicates LoadFirst was called without candidates.
	ErrNoLocations = errors.New("keystore: no candidate locations")
)
