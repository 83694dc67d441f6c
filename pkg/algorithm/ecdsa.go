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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

// ECDSA signs with ECDSA over SHA-2 and emits the fixed-width JOSE r||s
// encoding.
type ECDSA struct {
	name  string
	keyID string
	hash  crypto.Hash
	priv  *ecdsa.PrivateKey
	pub   *ecdsa.PublicKey
}

func curveFor(strength Strength) elliptic.Curve {
	switch strength {
	case Strength256:
		return elliptic.P256()
	case Strength384:
		return elliptic.P384()
	case Strength512:
		return elliptic.P521()
	}
	return nil
}

// NewECDSA binds an EC bundle to ES256 (P-256), ES384 (P-384) or ES512
// (P-521). The key curve must match the strength.
func NewECDSA(strength Strength, bundle *keybundle.KeyBundle, opts ...Option) (*ECDSA, error) {
	h, err := strength.hash()
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, configError("ECDSA requires a key bundle")
	}

	pub, err := bundle.PublicKey()
	if err != nil {
		return nil, configError("ECDSA requires a certificate: %v", err)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, configError("ECDSA requires an EC public key, got %T", pub)
	}
	if want := curveFor(strength); ecPub.Curve != want {
		return nil, configError("ES%d requires curve %s, got %s",
			int(strength), want.Params().Name, ecPub.Curve.Params().Name)
	}

	var ecPriv *ecdsa.PrivateKey
	if bundle.HasPrivateKey() {
		ecPriv, ok = bundle.PrivateKey().(*ecdsa.PrivateKey)
		if !ok {
			return nil, configError("ECDSA requires an EC private key, got %T", bundle.PrivateKey())
		}
	}

	o := newOptions(opts)
	return &ECDSA{
		name:  familyName("ES", strength),
		keyID: defaultKeyID(o.keyID, ecPub),
		hash:  h,
		priv:  ecPriv,
		pub:   ecPub,
	}, nil
}

func (a *ECDSA) Name() string  { return a.name }
func (a *ECDSA) KeyID() string { return a.keyID }
func (a *ECDSA) CanSign() bool { return a.priv != nil }

// PublicKey returns the verification key.
func (a *ECDSA) PublicKey() crypto.PublicKey { return a.pub }

func (a *ECDSA) SignData(data []byte) ([]byte, error) {
	if a.priv == nil {
		return nil, generationError(ErrVerifyOnly)
	}
	return signECDSA(a.priv, a.hash, data)
}

func (a *ECDSA) VerifyData(data, sig []byte) error {
	return verifyECDSA(a.pub, a.hash, data, sig)
}

func (a *ECDSA) Sign(header, payload string) (string, error) {
	return signJWS(a, header, payload)
}

func (a *ECDSA) Verify(header, payload, signature string) error {
	return verifyJWS(a, header, payload, signature)
}

func curveBytes(c elliptic.Curve) int {
	return (c.Params().BitSize + 7) / 8
}

func signECDSA(priv *ecdsa.PrivateKey, h crypto.Hash, data []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest(h, data))
	if err != nil {
		return nil, generationError(err)
	}
	size := curveBytes(priv.Curve)
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

func verifyECDSA(pub *ecdsa.PublicKey, h crypto.Hash, data, sig []byte) error {
	size := curveBytes(pub.Curve)
	if len(sig) != 2*size {
		return verificationError(fmt.Errorf("signature length %d, want %d", len(sig), 2*size))
	}
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])
	if !ecdsa.Verify(pub, digest(h, data), r, s) {
		return verificationError(errMismatch)
	}
	return nil
}
