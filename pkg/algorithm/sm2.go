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
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/tjfoc/gmsm/sm2"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// DefaultSM2ID is the signer ID used when none is configured.
const DefaultSM2ID = "1234567812345678"

// SM2Mode selects the SM2 signature encoding.
type SM2Mode int

const (
	// ModeASN1 encodes signatures as a DER SEQUENCE of r and s.
	ModeASN1 SM2Mode = iota
	// ModeRS encodes signatures as 64 bytes of fixed-width r||s.
	ModeRS
)

func (m SM2Mode) String() string {
	if m == ModeRS {
		return "rs"
	}
	return "asn1"
}

// ParseSM2Mode parses "asn1" or "rs". Empty yields ModeASN1.
func ParseSM2Mode(s string) (SM2Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asn1", "der":
		return ModeASN1, nil
	case "rs", "plain":
		return ModeRS, nil
	default:
		return 0, configError("unknown SM2 mode %q", s)
	}
}

// WithID sets the SM2 signer ID.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.sm2ID = []byte(id)
		}
	}
}

// WithMode sets the SM2 signature encoding.
func WithMode(mode SM2Mode) Option {
	return func(o *options) { o.sm2Mod = mode }
}

const sm2ScalarSize = 32

// SM2 signs with SM2 over SM3 on the SM2 P-256 curve.
type SM2 struct {
	keyID string
	id    []byte
	mode  SM2Mode
	priv  *sm2.PrivateKey
	pub   *sm2.PublicKey
}

// NewSM2 builds an SM2 algorithm from hex or base64 raw keys. privateKey is
// the 32-byte scalar D. publicKey is the uncompressed point, with or
// without the 0x04 prefix. When publicKey is empty it is derived from
// privateKey; when privateKey is empty the algorithm is verify-only.
func NewSM2(privateKey, publicKey string, opts ...Option) (*SM2, error) {
	if strings.TrimSpace(privateKey) == "" && strings.TrimSpace(publicKey) == "" {
		return nil, configError("SM2 requires a private or public key")
	}
	o := newOptions(opts)
	if o.sm2Mod != ModeASN1 && o.sm2Mod != ModeRS {
		return nil, configError("unknown SM2 mode %d", int(o.sm2Mod))
	}

	curve := sm2.P256Sm2()
	a := &SM2{keyID: o.keyID, id: o.sm2ID, mode: o.sm2Mod}

	if strings.TrimSpace(privateKey) != "" {
		raw, err := decodeKeyMaterial(privateKey)
		if err != nil {
			return nil, configError("SM2 private key: %v", err)
		}
		if len(raw) != sm2ScalarSize {
			return nil, configError("SM2 private key must be %d bytes, got %d", sm2ScalarSize, len(raw))
		}
		d := new(big.Int).SetBytes(raw)
		if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
			return nil, configError("SM2 private key out of range")
		}
		priv := &sm2.PrivateKey{D: d}
		priv.Curve = curve
		priv.X, priv.Y = curve.ScalarBaseMult(raw)
		a.priv = priv
		a.pub = &priv.PublicKey
	}

	if strings.TrimSpace(publicKey) != "" {
		raw, err := decodeKeyMaterial(publicKey)
		if err != nil {
			return nil, configError("SM2 public key: %v", err)
		}
		if len(raw) == 2*sm2ScalarSize+1 && raw[0] == 0x04 {
			raw = raw[1:]
		}
		if len(raw) != 2*sm2ScalarSize {
			return nil, configError("SM2 public key must be %d or %d bytes", 2*sm2ScalarSize, 2*sm2ScalarSize+1)
		}
		x := new(big.Int).SetBytes(raw[:sm2ScalarSize])
		y := new(big.Int).SetBytes(raw[sm2ScalarSize:])
		if !curve.IsOnCurve(x, y) {
			return nil, configError("SM2 public key is not on the curve")
		}
		if a.pub != nil && (a.pub.X.Cmp(x) != 0 || a.pub.Y.Cmp(y) != 0) {
			return nil, configError("SM2 public key does not match private key")
		}
		a.pub = &sm2.PublicKey{Curve: curve, X: x, Y: y}
	}

	return a, nil
}

// decodeKeyMaterial accepts hex, then standard or URL base64.
func decodeKeyMaterial(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(s); err == nil {
		return raw, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("not hex or base64")
}

func (a *SM2) Name() string  { return "SM2" }
func (a *SM2) KeyID() string { return a.keyID }
func (a *SM2) CanSign() bool { return a.priv != nil }

// Mode returns the signature encoding.
func (a *SM2) Mode() SM2Mode { return a.mode }

func (a *SM2) SignData(data []byte) ([]byte, error) {
	if a.priv == nil {
		return nil, generationError(ErrVerifyOnly)
	}
	r, s, err := sm2.Sm2Sign(a.priv, data, a.id, rand.Reader)
	if err != nil {
		return nil, generationError(err)
	}

	if a.mode == ModeRS {
		sig := make([]byte, 2*sm2ScalarSize)
		r.FillBytes(sig[:sm2ScalarSize])
		s.FillBytes(sig[sm2ScalarSize:])
		return sig, nil
	}

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	sig, err := b.Bytes()
	if err != nil {
		return nil, generationError(err)
	}
	return sig, nil
}

func (a *SM2) VerifyData(data, sig []byte) error {
	r, s := new(big.Int), new(big.Int)

	if a.mode == ModeRS {
		if len(sig) != 2*sm2ScalarSize {
			return verificationError(fmt.Errorf("signature length %d, want %d", len(sig), 2*sm2ScalarSize))
		}
		r.SetBytes(sig[:sm2ScalarSize])
		s.SetBytes(sig[sm2ScalarSize:])
	} else {
		input := cryptobyte.String(sig)
		var inner cryptobyte.String
		if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() ||
			!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
			return verificationError(fmt.Errorf("malformed ASN.1 signature"))
		}
	}

	if !sm2.Sm2Verify(a.pub, data, a.id, r, s) {
		return verificationError(errMismatch)
	}
	return nil
}

func (a *SM2) Sign(header, payload string) (string, error) {
	return signJWS(a, header, payload)
}

func (a *SM2) Verify(header, payload, signature string) error {
	return verifyJWS(a, header, payload, signature)
}
