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
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
	"path"
	"testing"

	"github.com/spf13/afero"
)

// Fixture is a set of key material written to a filesystem together with
// the configuration that references it.
type Fixture struct {
	RSA       *KeyPair
	EC        *KeyPair
	SM2Priv   string
	SM2Pub    string
	StorePass string
	Secret    string
	P12Path   string
	PEMPath   string
}

// NewFixture writes server.p12 (RSA, alias "1") and signer.pem (ECDSA P-256)
// under dir on fs.
func NewFixture(t testing.TB, fs afero.Fs, dir string) *Fixture {
	t.Helper()
	f := &Fixture{
		RSA:       MustRSA(t, 2048, x509.SHA256WithRSA),
		EC:        MustECDSA(t, elliptic.P256()),
		StorePass: "changeit",
		Secret:    "0123456789abcdef0123456789abcdef",
		P12Path:   path.Join(dir, "server.p12"),
		PEMPath:   path.Join(dir, "signer.pem"),
	}
	f.SM2Priv, f.SM2Pub = MustSM2Hex(t)

	p12, err := BuildPKCS12(f.RSA, f.StorePass)
	if err != nil {
		t.Fatalf("BuildPKCS12: %v", err)
	}
	pemText, err := f.EC.PEM(nil)
	if err != nil {
		t.Fatalf("PEM: %v", err)
	}
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := afero.WriteFile(fs, f.P12Path, p12, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := afero.WriteFile(fs, f.PEMPath, pemText, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return f
}

// ConfigYAML returns bundles, algorithms and tokens sections using the
// fixture's material: rs256 (store), es256 (PEM), hs256 (secret) and sm2.
func (f *Fixture) ConfigYAML() string {
	return fmt.Sprintf(`
bundles:
  server:
    source: store
    location: %q
    format: pkcs12
    store_passphrase: %q
    alias: "1"
  signer:
    source: pem
    location: %q
  mac:
    source: secret
    secret: %q

algorithms:
  rs256:
    family: rsa
    strength: 256
    bundle: server
  es256:
    family: ecdsa
    strength: 256
    bundle: signer
  hs256:
    family: hmac
    strength: 256
    bundle: mac
  sm2:
    family: sm2
    sm2_private_key: %q
    sm2_public_key: %q

tokens:
  issuer: turbo
  audience: [api]
  ttl: 1h
  algorithm: rs256
`, f.P12Path, f.StorePass, f.PEMPath, f.Secret, f.SM2Priv, f.SM2Pub)
}
