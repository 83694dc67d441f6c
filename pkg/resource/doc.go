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

// Package resource opens key material by location and expands secret
// placeholders in configuration values.
//
// Locations:
//
//	/etc/turbo/keystore.p12          filesystem path
//	file:/etc/turbo/keystore.p12     filesystem path
//	https://keys.example.com/k.pem   HTTP(S) with retries
//	base64:MIIK...                   inline data
//
// Placeholders have the form ${provider:key} or ${provider:key:-default}.
// A bare ${NAME} reads the environment.
package resource

import "errors"

var (
	// ErrNotFound is returned when a location or key does not exist
	ErrNotFound = errors.New("resource: not found")

	// ErrUnsupportedScheme is returned for locations with an unknown scheme
	ErrUnsupportedScheme = errors.New("resource: unsupported scheme")

	// ErrUnresolved is returned when a placeholder cannot be expanded
	ErrUnresolved = errors.New("resource: unresolved placeholder")
)
