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
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPKCS8_RoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, _ := newTestCert(t)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	keys := map[string]privateKeyEqualer{
		"RSA":     rsaKey,
		"ECDSA":   ecKey,
		"Ed25519": edKey,
	}

	for name, key := range keys {
		t.Run(name+"/plain", func(t *testing.T) {
			der, err := EncodePKCS8(key, nil)
			require.NoError(t, err)
			decoded, err := DecodePKCS8(der, nil)
			require.NoError(t, err)
			assert.True(t, key.Equal(decoded))
		})
		t.Run(name+"/encrypted", func(t *testing.T) {
			der, err := EncodePKCS8(key, []byte("password"))
			require.NoError(t, err)
			decoded, err := DecodePKCS8(der, []byte("password"))
			require.NoError(t, err)
			assert.True(t, key.Equal(decoded))

			_, err = DecodePKCS8(der, []byte("other"))
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}
}

func TestEncodePKCS8_NilKey(t *testing.T) {
	_, err := EncodePKCS8(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestDecodePKCS8_Empty(t *testing.T) {
	_, err := DecodePKCS8(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestParsePrivateKeyDER(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, _ := newTestCert(t)

	pkcs8DER, err := x509.MarshalPKCS8PrivateKey(ecKey)
	require.NoError(t, err)
	sec1DER, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		der  []byte
		want privateKeyEqualer
	}{
		{"PKCS8", pkcs8DER, ecKey},
		{"PKCS1", x509.MarshalPKCS1PrivateKey(rsaKey), rsaKey},
		{"SEC1", sec1DER, ecKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePrivateKeyDER(tt.der)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(key))
		})
	}

	_, err = ParsePrivateKeyDER([]byte{0x30, 0x00})
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}
