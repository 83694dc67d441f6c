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

package encoding

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypePublicKey           = "PUBLIC KEY"
	PEMTypeCertificate         = "CERTIFICATE"
)

// DecodeCertificatesPEM returns every CERTIFICATE block in data, in order.
// Blocks of other types are skipped.
func DecodeCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	return certs, nil
}

// DecodePrivateKeyPEM returns the first private key block in data.
//
// ENCRYPTED PRIVATE KEY blocks are decrypted with password. Plain PKCS#8,
// PKCS#1 and SEC 1 blocks ignore it.
//
// Example:
//
//	key, err := encoding.DecodePrivateKeyPEM(pemData, []byte("password"))
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoPrivateKey
		}

		switch block.Type {
		case PEMTypeEncryptedPrivateKey:
			if len(password) == 0 {
				return nil, ErrPasswordRequired
			}
			return DecodePKCS8(block.Bytes, password)
		case PEMTypePrivateKey:
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
			}
			return checkPrivateKey(key)
		case PEMTypeRSAPrivateKey:
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
			}
			return key, nil
		case PEMTypeECPrivateKey:
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
			}
			return key, nil
		}
	}
}

// EncodePrivateKeyPEM encodes a private key as a PKCS#8 PEM block. A non-empty
// password produces an ENCRYPTED PRIVATE KEY block.
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	der, err := EncodePKCS8(privateKey, password)
	if err != nil {
		return nil, err
	}

	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// EncodeCertificatePEM encodes a certificate to PEM format.
func EncodeCertificatePEM(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, ErrInvalidCertificate
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}), nil
}

// EncodeCertificateChainPEM concatenates the PEM encoding of each certificate.
func EncodeCertificateChainPEM(certs []*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, ErrInvalidCertificate
	}

	var buf bytes.Buffer
	for i, cert := range certs {
		data, err := EncodeCertificatePEM(cert)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", i, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// EncodePublicKeyPEM encodes a public key as a PKIX PUBLIC KEY block.
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKIX public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: der}), nil
}
