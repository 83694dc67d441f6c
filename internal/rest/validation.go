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

package rest

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches configured bundle and algorithm names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

// ValidateName checks that a name taken from a URL or request body is a
// plausible configuration key before it is used in a lookup or a log line.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("name too long (max 128 characters)")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("name contains invalid path components")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)")
	}
	return nil
}

// SanitizeString removes control characters and truncates s for log output.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
