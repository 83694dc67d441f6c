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
	"bytes"
	_ "embed"
)

// mac1.p12 is a PBES2/AES-256 PKCS#12 file with a SHA-256 MAC holding a
// Java style secret key entry and an ECDSA P-256 key entry.
//
//go:embed testdata/mac1.p12
var secretStoreP12 []byte

const (
	// SecretStorePassphrase opens the store and every entry in it.
	SecretStorePassphrase = "pw"
	// SecretStoreAlias names the HmacSHA256 secret key entry.
	SecretStoreAlias = "mac1"
	// SecretStoreSignerAlias names the private key entry.
	SecretStoreSignerAlias = "signer"
)

// SecretStoreKey is the secret held under SecretStoreAlias.
var SecretStoreKey = []byte("turbocharger hmac-sha256 key 001")

// SecretStorePKCS12 returns a copy of the secret key store.
func SecretStorePKCS12() []byte {
	return bytes.Clone(secretStoreP12)
}
