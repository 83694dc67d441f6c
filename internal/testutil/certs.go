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

// Package testutil generates key material and key containers for tests.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/jeremyhahn/go-turbocharger/pkg/encoding"
)

// KeyPair is a private key and the certificate that carries its public key.
type KeyPair struct {
	// Cert is the X.509 certificate
	Cert *x509.Certificate
	// Key is the private key
	Key crypto.Signer
	// CertPEM is the PEM-encoded certificate
	CertPEM []byte
	// KeyPEM is the unencrypted PKCS#8 PEM-encoded private key
	KeyPEM []byte
}

// GenerateRSA generates a self-signed RSA certificate signed with sigAlg.
//
// Example:
//
//	kp, err := testutil.GenerateRSA(2048, x509.SHA256WithRSA)
func GenerateRSA(bits int, sigAlg x509.SignatureAlgorithm) (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return selfSign(key, sigAlg, "Test RSA")
}

// GenerateECDSA generates a self-signed ECDSA certificate. The signature
// algorithm follows the curve size.
func GenerateECDSA(curve elliptic.Curve) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	sigAlg := x509.ECDSAWithSHA256
	switch curve {
	case elliptic.P384():
		sigAlg = x509.ECDSAWithSHA384
	case elliptic.P521():
		sigAlg = x509.ECDSAWithSHA512
	}
	return selfSign(key, sigAlg, "Test ECDSA")
}

// GenerateLeaf generates an ECDSA P-256 certificate issued by ca.
func GenerateLeaf(ca *KeyPair, commonName string) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate leaf key: %w", err)
	}

	template, err := newTemplate(commonName, x509.ECDSAWithSHA256)
	if err != nil {
		return nil, err
	}
	template.KeyUsage = x509.KeyUsageDigitalSignature

	der, err := x509.CreateCertificate(rand.Reader, template, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create leaf certificate: %w", err)
	}
	return newKeyPair(der, key)
}

// PEM returns the certificate followed by the private key. A non-empty
// password encrypts the key as PKCS#8 PBES2.
func (kp *KeyPair) PEM(password []byte, chain ...*KeyPair) ([]byte, error) {
	out := append([]byte{}, kp.CertPEM...)
	for _, c := range chain {
		out = append(out, c.CertPEM...)
	}
	keyPEM, err := encoding.EncodePrivateKeyPEM(kp.Key, password)
	if err != nil {
		return nil, err
	}
	return append(out, keyPEM...), nil
}

// MustRSA is GenerateRSA for tests.
func MustRSA(t testing.TB, bits int, sigAlg x509.SignatureAlgorithm) *KeyPair {
	t.Helper()
	kp, err := GenerateRSA(bits, sigAlg)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	return kp
}

// MustECDSA is GenerateECDSA for tests.
func MustECDSA(t testing.TB, curve elliptic.Curve) *KeyPair {
	t.Helper()
	kp, err := GenerateECDSA(curve)
	if err != nil {
		t.Fatalf("GenerateECDSA: %v", err)
	}
	return kp
}

func selfSign(key crypto.Signer, sigAlg x509.SignatureAlgorithm, cn string) (*KeyPair, error) {
	template, err := newTemplate(cn, sigAlg)
	if err != nil {
		return nil, err
	}
	template.IsCA = true
	template.BasicConstraintsValid = true
	template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	return newKeyPair(der, key)
}

func newTemplate(cn string, sigAlg x509.SignatureAlgorithm) (*x509.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	notBefore := time.Now().Add(-time.Minute)
	return &x509.Certificate{
		SerialNumber:       serialNumber,
		Subject:            pkix.Name{Organization: []string{"go-turbocharger"}, CommonName: cn},
		NotBefore:          notBefore,
		NotAfter:           notBefore.Add(24 * time.Hour),
		SignatureAlgorithm: sigAlg,
	}, nil
}

func newKeyPair(der []byte, key crypto.Signer) (*KeyPair, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	keyPEM, err := encoding.EncodePrivateKeyPEM(key, nil)
	if err != nil {
		return nil, err
	}
	return &KeyPair{
		Cert:    cert,
		Key:     key,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  keyPEM,
	}, nil
}
