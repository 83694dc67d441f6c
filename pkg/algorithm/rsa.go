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
	"crypto"
	"crypto/rand"
	"crypto/rsa"

	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

// RSA signs with RSASSA-PKCS1-v1_5 over SHA-2.
type RSA struct {
	name  string
	keyID string
	hash  crypto.Hash
	priv  *rsa.PrivateKey
	pub   *rsa.PublicKey
}

// NewRSA binds an RSA bundle to RS256, RS384 or RS512. A bundle without a
// private key yields a verify-only algorithm.
func NewRSA(strength Strength, bundle *keybundle.KeyBundle, opts ...Option) (*RSA, error) {
	h, err := strength.hash()
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, configError("RSA requires a key bundle")
	}

	pub, err := bundle.PublicKey()
	if err != nil {
		return nil, configError("RSA requires a certificate: %v", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, configError("RSA requires an RSA public key, got %T", pub)
	}

	var rsaPriv *rsa.PrivateKey
	if bundle.HasPrivateKey() {
		rsaPriv, ok = bundle.PrivateKey().(*rsa.PrivateKey)
		if !ok {
			return nil, configError("RSA requires an RSA private key, got %T", bundle.PrivateKey())
		}
	}

	o := newOptions(opts)
	return &RSA{
		name:  familyName("RS", strength),
		keyID: defaultKeyID(o.keyID, rsaPub),
		hash:  h,
		priv:  rsaPriv,
		pub:   rsaPub,
	}, nil
}

func (a *RSA) Name() string  { return a.name }
func (a *RSA) KeyID() string { return a.keyID }
func (a *RSA) CanSign() bool { return a.priv != nil }

// PublicKey returns the verification key.
func (a *RSA) PublicKey() crypto.PublicKey { return a.pub }

func (a *RSA) SignData(data []byte) ([]byte, error) {
	if a.priv == nil {
		return nil, generationError(ErrVerifyOnly)
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, a.priv, a.hash, digest(a.hash, data))
	if err != nil {
		return nil, generationError(err)
	}
	return sig, nil
}

func (a *RSA) VerifyData(data, sig []byte) error {
	if err := rsa.VerifyPKCS1v15(a.pub, a.hash, digest(a.hash, data), sig); err != nil {
		return verificationError(err)
	}
	return nil
}

func (a *RSA) Sign(header, payload string) (string, error) {
	return signJWS(a, header, payload)
}

func (a *RSA) Verify(header, payload, signature string) error {
	return verifyJWS(a, header, payload, signature)
}
