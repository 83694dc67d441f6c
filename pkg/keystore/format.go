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
	"fmt"
	"strings"
)

// Format identifies a key container format.
type Format int

const (
	// PKCS12 is the PKCS#12 (PFX) container format.
	PKCS12 Format = iota
	// JKS is the Java KeyStore container format.
	JKS
)

// DefaultFormat is used when no format is requested.
const DefaultFormat = PKCS12

// String returns the canonical lowercase tag.
func (f Format) String() string {
	switch f {
	case PKCS12:
		return "pkcs12"
	case JKS:
		return "jks"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat parses a case-insensitive format tag. An empty tag yields
// DefaultFormat. "p12" and "pfx" are accepted for PKCS12.
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "":
		return DefaultFormat, nil
	case "pkcs12", "p12", "pfx":
		return PKCS12, nil
	case "jks":
		return JKS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
	}
}
