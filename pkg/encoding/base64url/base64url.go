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

// Package base64url implements the unpadded URL-safe base64 alphabet used by
// JOSE signatures and segments.
package base64url

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEncoding is returned when input is not valid base64url.
var ErrInvalidEncoding = errors.New("base64url: invalid encoding")

// Encode returns the unpadded base64url encoding of data.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// EncodeString is Encode for string input.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode decodes s. Trailing '=' padding is tolerated. Non-zero trailing
// bits are rejected so each byte string has exactly one encoding.
func Decode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return b, nil
}
