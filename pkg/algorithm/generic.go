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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha1"
	"crypto/x509"

	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

type scheme int

const (
	schemePKCS1 scheme = iota + 1
	schemePSS
	schemeECDSA
	schemeEd25519
)

type primitive struct {
	scheme scheme
	hash   crypto.Hash
}

var primitives = map[x509.SignatureAlgorithm]primitive{
	x509.SHA1WithRSA:      {schemePKCS1, crypto.SHA1},
	x509.SHA256WithRSA:    {schemePKCS1, crypto.SHA256},
	x509.SHA384WithRSA:    {schemePKCS1, crypto.SHA384},
	x509.SHA512WithRSA:    {schemePKCS1, crypto.SHA512},
	x509.SHA256WithRSAPSS: {schemePSS, crypto.SHA256},
	x509.SHA384WithRSAPSS: {schemePSS, crypto.SHA384},
	x509.SHA512WithRSAPSS: {schemePSS, crypto.SHA512},
	x509.ECDSAWithSHA1:    {schemeECDSA, crypto.SHA1},
	x509.ECDSAWithSHA256:  {schemeECDSA, crypto.SHA256},
	x509.ECDSAWithSHA384:  {schemeECDSA, crypto.SHA384},
	x509.ECDSAWithSHA512:  {schemeECDSA, crypto.SHA512},
	x509.PureEd25519:      {schemeEd25519, 0},
}

// Generic signs with whatever algorithm the bundle's leaf certificate
// declares. Its name is the JWT short name of that algorithm, or the JCA
// name when no short name exists.
type Generic struct {
	name      string
	keyID     string
	primitive primitive
	priv      crypto.Signer
	pub       crypto.PublicKey
}

// NewGeneric derives the algorithm from the leaf certificate of bundle.
func NewGeneric(bundle *keybundle.KeyBundle, opts ...Option) (*Generic, error) {
	if bundle == nil {
		return nil, configError("generic algorithm requires a key bundle")
	}
	leaf, err := bundle.Leaf()
	if err != nil {
		return nil, configError("generic algorithm requires a certificate: %v", err)
	}

	p, ok := primitives[leaf.SignatureAlgorithm]
	if !ok {
		return nil, configError("unsupported certificate signature algorithm %s", leaf.SignatureAlgorithm)
	}
	if !keyMatchesScheme(leaf.PublicKey, p.scheme) {
		return nil, configError("%s cannot be used with a %T key", JCAName(leaf.SignatureAlgorithm), leaf.PublicKey)
	}

	var signer crypto.Signer
	if bundle.HasPrivateKey() {
		signer, ok = bundle.PrivateKey().(crypto.Signer)
		if !ok {
			return nil, configError("private key %T cannot sign", bundle.PrivateKey())
		}
		if _, isEC := signer.(*ecdsa.PrivateKey); p.scheme == schemeECDSA && !isEC {
			return nil, configError("ECDSA requires an EC private key, got %T", signer)
		}
	}

	o := newOptions(opts)
	return &Generic{
		name:      JWTName(JCAName(leaf.SignatureAlgorithm)),
		keyID:     defaultKeyID(o.keyID, leaf.PublicKey),
		primitive: p,
		priv:      signer,
		pub:       leaf.PublicKey,
	}, nil
}

func keyMatchesScheme(pub crypto.PublicKey, s scheme) bool {
	switch pub.(type) {
	case *rsa.PublicKey:
		return s == schemePKCS1 || s == schemePSS
	case *ecdsa.PublicKey:
		return s == schemeECDSA
	case ed25519.PublicKey:
		return s == schemeEd25519
	}
	return false
}

func (a *Generic) Name() string  { return a.name }
func (a *Generic) KeyID() string { return a.keyID }
func (a *Generic) CanSign() bool { return a.priv != nil }

// PublicKey returns the verification key.
func (a *Generic) PublicKey() crypto.PublicKey { return a.pub }

func (a *Generic) SignData(data []byte) ([]byte, error) {
	if a.priv == nil {
		return nil, generationError(ErrVerifyOnly)
	}

	var (
		sig []byte
		err error
	)
	switch a.primitive.scheme {
	case schemePKCS1:
		sig, err = a.priv.Sign(rand.Reader, digest(a.primitive.hash, data), a.primitive.hash)
	case schemePSS:
		sig, err = a.priv.Sign(rand.Reader, digest(a.primitive.hash, data), &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       a.primitive.hash,
		})
	case schemeECDSA:
		return signECDSA(a.priv.(*ecdsa.PrivateKey), a.primitive.hash, data)
	case schemeEd25519:
		sig, err = a.priv.Sign(rand.Reader, data, crypto.Hash(0))
	}
	if err != nil {
		return nil, generationError(err)
	}
	return sig, nil
}

func (a *Generic) VerifyData(data, sig []byte) error {
	var err error
	switch a.primitive.scheme {
	case schemePKCS1:
		err = rsa.VerifyPKCS1v15(a.pub.(*rsa.PublicKey), a.primitive.hash, digest(a.primitive.hash, data), sig)
	case schemePSS:
		err = rsa.VerifyPSS(a.pub.(*rsa.PublicKey), a.primitive.hash, digest(a.primitive.hash, data), sig,
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: a.primitive.hash})
	case schemeECDSA:
		return verifyECDSA(a.pub.(*ecdsa.PublicKey), a.primitive.hash, data, sig)
	case schemeEd25519:
		if !ed25519.Verify(a.pub.(ed25519.PublicKey), data, sig) {
			err = errMismatch
		}
	}
	if err != nil {
		return verificationError(err)
	}
	return nil
}

func (a *Generic) Sign(header, payload string) (string, error) {
	return signJWS(a, header, payload)
}

func (a *Generic) Verify(header, payload, signature string) error {
	return verifyJWS(a, header, payload, signature)
}
