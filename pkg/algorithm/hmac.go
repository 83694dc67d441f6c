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
	"bytes"
	"crypto"
	"crypto/hmac"

	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

// HMAC signs with HMAC over SHA-2.
type HMAC struct {
	name   string
	keyID  string
	hash   crypto.Hash
	secret []byte
}

// NewHMAC binds secret to HS256, HS384 or HS512.
func NewHMAC(strength Strength, secret []byte, opts ...Option) (*HMAC, error) {
	h, err := strength.hash()
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, configError("HMAC requires a non-empty secret")
	}

	o := newOptions(opts)
	return &HMAC{
		name:   familyName("HS", strength),
		keyID:  o.keyID,
		hash:   h,
		secret: bytes.Clone(secret),
	}, nil
}

// NewHMACFromBundle uses the secret held by a secret bundle. The bundle
// alias is the default key ID.
func NewHMACFromBundle(strength Strength, bundle *keybundle.KeyBundle, opts ...Option) (*HMAC, error) {
	if bundle == nil || !bundle.IsSecret() {
		return nil, configError("HMAC requires a secret bundle")
	}
	opts = append([]Option{WithKeyID(bundle.Alias())}, opts...)
	return NewHMAC(strength, bundle.Secret(), opts...)
}

func (a *HMAC) Name() string  { return a.name }
func (a *HMAC) KeyID() string { return a.keyID }
func (a *HMAC) CanSign() bool { return true }

func (a *HMAC) SignData(data []byte) ([]byte, error) {
	mac := hmac.New(a.hash.New, a.secret)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (a *HMAC) VerifyData(data, sig []byte) error {
	expected, err := a.SignData(data)
	if err != nil {
		return verificationError(err)
	}
	if !hmac.Equal(expected, sig) {
		return verificationError(errMismatch)
	}
	return nil
}

func (a *HMAC) Sign(header, payload string) (string, error) {
	return signJWS(a, header, payload)
}

func (a *HMAC) Verify(header, payload, signature string) error {
	return verifyJWS(a, header, payload, signature)
}
