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
	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

// Spec is the explicit configuration of one algorithm.
type Spec struct {
	Family   Family
	Strength Strength
	KeyID    string

	// SM2 key material, hex or base64.
	SM2PrivateKey string
	SM2PublicKey  string
	SM2ID         string
	SM2Mode       SM2Mode
}

// New builds the algorithm described by spec. RSA, ECDSA and Generic use
// bundle. HMAC uses secret when set and otherwise a secret bundle. SM2 uses
// only the keys in spec.
func New(spec Spec, bundle *keybundle.KeyBundle, secret []byte) (Algorithm, error) {
	var opts []Option
	if spec.KeyID != "" {
		opts = append(opts, WithKeyID(spec.KeyID))
	}

	switch spec.Family {
	case FamilyRSA:
		a, err := NewRSA(spec.Strength, bundle, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case FamilyECDSA:
		a, err := NewECDSA(spec.Strength, bundle, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case FamilyHMAC:
		var (
			a   *HMAC
			err error
		)
		if len(secret) > 0 {
			a, err = NewHMAC(spec.Strength, secret, opts...)
		} else {
			a, err = NewHMACFromBundle(spec.Strength, bundle, opts...)
		}
		if err != nil {
			return nil, err
		}
		return a, nil
	case FamilySM2:
		opts = append(opts, WithID(spec.SM2ID), WithMode(spec.SM2Mode))
		a, err := NewSM2(spec.SM2PrivateKey, spec.SM2PublicKey, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case FamilyGeneric:
		a, err := NewGeneric(bundle, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, configError("unknown family %d", int(spec.Family))
	}
}
