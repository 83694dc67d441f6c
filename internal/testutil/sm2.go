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

package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/tjfoc/gmsm/sm2"
)

// MustSM2Hex generates an SM2 key pair and returns the 32-byte private
// scalar and the uncompressed public point, hex encoded.
func MustSM2Hex(t testing.TB) (priv, pub string) {
	t.Helper()
	key, err := sm2.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("sm2.GenerateKey: %v", err)
	}
	d := make([]byte, 32)
	key.D.FillBytes(d)
	point := make([]byte, 65)
	point[0] = 0x04
	key.X.FillBytes(point[1:33])
	key.Y.FillBytes(point[33:])
	return hex.EncodeToString(d), hex.EncodeToString(point)
}
