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

// Package keystore loads PKCS#12 and JKS key containers and exposes their
// entries through a read-only Store.
//
// # Loading
//
// Load consumes a stream, decodes it with the provider for the requested
// Format and returns a Store. A malformed container or a wrong store
// passphrase fails with ErrKeyMaterial. A failed read fails with ErrIO so
// callers can tell an unreachable resource from bad credentials.
//
//	store, err := keystore.LoadFile(afero.NewOsFs(), "server.p12", keystore.PKCS12, "changeit")
//	if err != nil {
//	    return err
//	}
//	key, err := store.Key("server", "changeit")
//
// Load never retries. LoadFirst tries a list of candidate locations and keeps
// the first one that opens and loads.
//
// # Providers
//
// PKCS#12 containers are decoded with software.sslmate.com/src/go-pkcs12.
// Entries are grouped by their localKeyId attribute and named by their
// friendlyName attribute. Entries without a name are aliased "1", "2", ...
// in bag order. A PKCS#12 key is protected by the store passphrase.
//
// JKS containers are decoded with github.com/pavlo-v-chernykh/keystore-go.
// Aliases are case-insensitive and reported in lowercase.
package keystore
