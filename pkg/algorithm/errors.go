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

package algorithm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates an unsupported family, strength or
	// key for the requested algorithm. It is raised at construction.
	ErrInvalidConfiguration = errors.New("algorithm: invalid configuration")

	// ErrSignatureGeneration indicates signing failed.
	ErrSignatureGeneration = errors.New("algorithm: signature generation failed")

	// ErrSignatureVerification indicates the signature is malformed or does
	// not match the data.
	ErrSignatureVerification = errors.New("algorithm: signature verification failed")

	// ErrVerifyOnly indicates the algorithm holds no signing key.
	ErrVerifyOnly = errors.New("algorithm: verify-only algorithm cannot sign")
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// generationError wraps err unless it already reports a generation failure.
func generationError(err error) error {
	if errors.Is(err, ErrSignatureGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSignatureGeneration, err)
}

// verificationError wraps err unless it already reports a verification
// failure.
func verificationError(err error) error {
	if errors.Is(err, ErrSignatureVerification) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSignatureVerification, err)
}

var errMismatch = errors.New("signature mismatch")
