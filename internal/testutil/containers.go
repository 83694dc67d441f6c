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
	"crypto/x509"
	"fmt"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"
)

// BuildPKCS12 encodes a key entry (key, leaf certificate, CA chain) into a
// PKCS#12 container protected by password.
func BuildPKCS12(kp *KeyPair, password string, chain ...*KeyPair) ([]byte, error) {
	caCerts := make([]*x509.Certificate, 0, len(chain))
	for _, c := range chain {
		caCerts = append(caCerts, c.Cert)
	}
	data, err := pkcs12.Modern.Encode(kp.Key, kp.Cert, caCerts, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12: %w", err)
	}
	return data, nil
}

// BuildPKCS12TrustStore encodes certificate-only entries with Java-style
// friendly names.
func BuildPKCS12TrustStore(password string, entries map[string]*x509.Certificate) ([]byte, error) {
	list := make([]pkcs12.TrustStoreEntry, 0, len(entries))
	for alias, cert := range entries {
		list = append(list, pkcs12.TrustStoreEntry{Cert: cert, FriendlyName: alias})
	}
	data, err := pkcs12.Modern.EncodeTrustStoreEntries(list, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#12 trust store: %w", err)
	}
	return data, nil
}

// JKSEntry describes one entry of a JKS container built by BuildJKS.
type JKSEntry struct {
	Alias string
	// KeyPair with a private key produces a private-key entry; Trusted
	// produces a trusted-certificate entry.
	KeyPair *KeyPair
	Chain   []*KeyPair
	Trusted bool
	// KeyPassword protects a private-key entry
	KeyPassword string
}

// BuildJKS encodes entries into a JKS container. keystore-go enforces a
// minimum password length of six characters.
func BuildJKS(storePassword string, entries ...JKSEntry) ([]byte, error) {
	ks := keystore.New()
	now := time.Now()

	for _, e := range entries {
		if e.Trusted {
			err := ks.SetTrustedCertificateEntry(e.Alias, keystore.TrustedCertificateEntry{
				CreationTime: now,
				Certificate:  keystore.Certificate{Type: "X.509", Content: e.KeyPair.Cert.Raw},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to set trusted entry %s: %w", e.Alias, err)
			}
			continue
		}

		der, err := x509.MarshalPKCS8PrivateKey(e.KeyPair.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %s: %w", e.Alias, err)
		}
		chain := []keystore.Certificate{{Type: "X.509", Content: e.KeyPair.Cert.Raw}}
		for _, c := range e.Chain {
			chain = append(chain, keystore.Certificate{Type: "X.509", Content: c.Cert.Raw})
		}
		err = ks.SetPrivateKeyEntry(e.Alias, keystore.PrivateKeyEntry{
			CreationTime:     now,
			PrivateKey:       der,
			CertificateChain: chain,
		}, []byte(e.KeyPassword))
		if err != nil {
			return nil, fmt.Errorf("failed to set private key entry %s: %w", e.Alias, err)
		}
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(storePassword)); err != nil {
		return nil, fmt.Errorf("failed to store JKS: %w", err)
	}
	return buf.Bytes(), nil
}
