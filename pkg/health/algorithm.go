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

package health

import (
	"context"
	"crypto/rand"
)

// SelfTester is the part of an algorithm exercised by AlgorithmCheck.
type SelfTester interface {
	Name() string
	CanSign() bool
	SignData(data []byte) ([]byte, error)
	VerifyData(data, sig []byte) error
}

// AlgorithmCheck signs random data with alg and verifies the result.
// Verify-only algorithms are reported as degraded.
func AlgorithmCheck(alg SelfTester) CheckFunc {
	return func(ctx context.Context) CheckResult {
		var result CheckResult
		if err := ctx.Err(); err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
			return result
		}
		if !alg.CanSign() {
			result.Status = StatusDegraded
			result.Message = "verify-only"
			return result
		}

		probe := make([]byte, 32)
		_, _ = rand.Read(probe)
		sig, err := alg.SignData(probe)
		if err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
			return result
		}
		if err := alg.VerifyData(probe, sig); err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
			return result
		}
		result.Status = StatusHealthy
		result.Message = "sign and verify succeeded"
		return result
	}
}
