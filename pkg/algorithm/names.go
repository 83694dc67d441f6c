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

import "crypto/x509"

// jcaNames maps certificate signature algorithms to their JCA names.
var jcaNames = map[x509.SignatureAlgorithm]string{
	x509.MD5WithRSA:       "MD5withRSA",
	x509.SHA1WithRSA:      "SHA1withRSA",
	x509.SHA256WithRSA:    "SHA256withRSA",
	x509.SHA384WithRSA:    "SHA384withRSA",
	x509.SHA512WithRSA:    "SHA512withRSA",
	x509.DSAWithSHA1:      "SHA1withDSA",
	x509.DSAWithSHA256:    "SHA256withDSA",
	x509.ECDSAWithSHA1:    "SHA1withECDSA",
	x509.ECDSAWithSHA256:  "SHA256withECDSA",
	x509.ECDSAWithSHA384:  "SHA384withECDSA",
	x509.ECDSAWithSHA512:  "SHA512withECDSA",
	x509.SHA256WithRSAPSS: "SHA256withRSAandMGF1",
	x509.SHA384WithRSAPSS: "SHA384withRSAandMGF1",
	x509.SHA512WithRSAPSS: "SHA512withRSAandMGF1",
	x509.PureEd25519:      "Ed25519",
}

// jwtNames maps JCA names to JWT short names.
var jwtNames = map[string]string{
	"SHA256withRSA":        "RS256",
	"SHA384withRSA":        "RS384",
	"SHA512withRSA":        "RS512",
	"SHA256withECDSA":      "ES256",
	"SHA384withECDSA":      "ES384",
	"SHA512withECDSA":      "ES512",
	"SHA256withRSAandMGF1": "PS256",
	"SHA384withRSAandMGF1": "PS384",
	"SHA512withRSAandMGF1": "PS512",
	"Ed25519":              "EdDSA",
}

// JCAName returns the JCA name of a certificate signature algorithm, or
// the x509 name when it has none.
func JCAName(alg x509.SignatureAlgorithm) string {
	if name, ok := jcaNames[alg]; ok {
		return name
	}
	return alg.String()
}

// JWTName translates a JCA signature name to its JWT short name. Unknown
// names are returned unchanged.
func JWTName(jca string) string {
	if name, ok := jwtNames[jca]; ok {
		return name
	}
	return jca
}
