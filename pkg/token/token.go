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

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
)

// Options configures an Encoder or Decoder.
type Options struct {
	// Issuer is written to and required in the iss claim.
	Issuer string
	// Audience is written to the aud claim. A decoder requires the first
	// entry.
	Audience []string
	// TTL sets exp relative to iat when positive.
	TTL time.Duration
	// Leeway is the clock skew tolerated by the decoder.
	Leeway time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Encoder signs claims into compact JWS tokens.
type Encoder struct {
	alg    algorithm.Algorithm
	method *SigningMethod
	opts   Options
}

// NewEncoder returns an encoder for alg.
func NewEncoder(alg algorithm.Algorithm, opts Options) (*Encoder, error) {
	if !alg.CanSign() {
		return nil, fmt.Errorf("%w: %s", ErrCannotSign, alg.Name())
	}
	return &Encoder{alg: alg, method: NewSigningMethod(alg), opts: opts}, nil
}

// Encode signs claims as-is. The kid header is set from the algorithm.
func (e *Encoder) Encode(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(e.method, claims)
	if kid := e.alg.KeyID(); kid != "" {
		t.Header["kid"] = kid
	}
	signed, err := t.SignedString(nil)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Issue builds registered claims for subject, merges extra and signs the
// result. Registered claims take precedence over extra.
func (e *Encoder) Issue(subject string, extra map[string]any) (string, error) {
	now := e.opts.now()

	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	if subject != "" {
		claims["sub"] = subject
	}
	if e.opts.Issuer != "" {
		claims["iss"] = e.opts.Issuer
	}
	switch len(e.opts.Audience) {
	case 0:
	case 1:
		claims["aud"] = e.opts.Audience[0]
	default:
		claims["aud"] = e.opts.Audience
	}
	claims["iat"] = jwt.NewNumericDate(now)
	claims["nbf"] = jwt.NewNumericDate(now)
	if e.opts.TTL > 0 {
		claims["exp"] = jwt.NewNumericDate(now.Add(e.opts.TTL))
	}
	claims["jti"] = uuid.NewString()

	return e.Encode(claims)
}

// Decoder verifies compact JWS tokens and validates their claims.
type Decoder struct {
	alg    algorithm.Algorithm
	parser *jwt.Parser
	opts   Options
}

// NewDecoder returns a decoder for alg.
func NewDecoder(alg algorithm.Algorithm, opts Options) *Decoder {
	return &Decoder{alg: alg, parser: jwt.NewParser(), opts: opts}
}

// Decode verifies token and fills claims. The header alg must equal the
// algorithm name; exp, nbf and iat are checked, and iss and aud when the
// decoder is configured with them.
func (d *Decoder) Decode(token string, claims jwt.Claims) error {
	parsed, parts, err := d.parser.ParseUnverified(token, claims)
	if err != nil {
		return err
	}

	if alg, _ := parsed.Header["alg"].(string); alg != d.alg.Name() {
		return fmt.Errorf("%w: token uses %q, expected %q", ErrAlgorithmMismatch, alg, d.alg.Name())
	}

	if err := d.alg.Verify(parts[0], parts[1], parts[2]); err != nil {
		return errors.Join(jwt.ErrTokenSignatureInvalid, err)
	}

	if err := jwt.NewValidator(d.validatorOptions()...).Validate(claims); err != nil {
		return err
	}
	return nil
}

func (d *Decoder) validatorOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(d.opts.now),
		jwt.WithIssuedAt(),
	}
	if d.opts.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(d.opts.Leeway))
	}
	if d.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(d.opts.Issuer))
	}
	if len(d.opts.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(d.opts.Audience[0]))
	}
	return opts
}
