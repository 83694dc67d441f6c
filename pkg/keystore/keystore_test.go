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

package keystore

import (
	"bytes"
	"context"
	"crypto"
	"crypto/elliptic"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"testing"
	"testing/iotest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-turbocharger/internal/testutil"
)

const (
	storePass = "changeit"
	keyPass   = "keypass1"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		tag     string
		want    Format
		wantErr bool
	}{
		{"", PKCS12, false},
		{"pkcs12", PKCS12, false},
		{"PKCS12", PKCS12, false},
		{"p12", PKCS12, false},
		{"JKS", JKS, false},
		{"jceks", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseFormat(tt.tag)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "pkcs12", PKCS12.String())
	assert.Equal(t, "jks", JKS.String())
	assert.Equal(t, PKCS12, DefaultFormat)
}

func newChain(t *testing.T) (leaf, ca *testutil.KeyPair) {
	t.Helper()
	ca = testutil.MustECDSA(t, elliptic.P384())
	leaf, err := testutil.GenerateLeaf(ca, "leaf")
	require.NoError(t, err)
	return leaf, ca
}

func TestLoad_PKCS12(t *testing.T) {
	leaf, ca := newChain(t)
	data, err := testutil.BuildPKCS12(leaf, storePass, ca)
	require.NoError(t, err)

	store, err := Load(bytes.NewReader(data), PKCS12, storePass)
	require.NoError(t, err)
	assert.Equal(t, PKCS12, store.Format())
	assert.Equal(t, []string{"1"}, store.Aliases())
	assert.True(t, store.ContainsAlias("1"))
	assert.True(t, store.IsKeyEntry("1"))

	t.Run("key with empty passphrase", func(t *testing.T) {
		key, err := store.Key("1", "")
		require.NoError(t, err)
		assert.True(t, leaf.Key.Public().(interface{ Equal(crypto.PublicKey) bool }).Equal(key.(crypto.Signer).Public()))
	})

	t.Run("key with store passphrase", func(t *testing.T) {
		_, err := store.Key("1", storePass)
		require.NoError(t, err)
	})

	t.Run("chain", func(t *testing.T) {
		chain, err := store.CertificateChain("1")
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.True(t, chain[0].Equal(leaf.Cert))
		assert.True(t, chain[1].Equal(ca.Cert))
	})

	t.Run("public key derives from certificate", func(t *testing.T) {
		cert, err := store.Certificate("1")
		require.NoError(t, err)
		pub, err := store.PublicKey("1")
		require.NoError(t, err)
		assert.Equal(t, cert.PublicKey, pub)
	})
}

func TestLoad_PKCS12_TrustStore(t *testing.T) {
	a := testutil.MustECDSA(t, elliptic.P256())
	b := testutil.MustRSA(t, 2048, x509.SHA256WithRSA)

	data, err := testutil.BuildPKCS12TrustStore(storePass, map[string]*x509.Certificate{
		"alpha": a.Cert,
		"beta":  b.Cert,
	})
	require.NoError(t, err)

	store, err := Load(bytes.NewReader(data), PKCS12, storePass)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, store.Aliases())
	for _, alias := range store.Aliases() {
		assert.False(t, store.IsKeyEntry(alias))
		_, err := store.Certificate(alias)
		assert.NoError(t, err)
		_, err = store.Key(alias, "")
		assert.ErrorIs(t, err, ErrKeyMaterial)
	}
}

func TestLoad_PKCS12_SecretKey(t *testing.T) {
	data := testutil.SecretStorePKCS12()

	store, err := Load(bytes.NewReader(data), PKCS12, testutil.SecretStorePassphrase)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{testutil.SecretStoreAlias, testutil.SecretStoreSignerAlias}, store.Aliases())

	t.Run("secret entry", func(t *testing.T) {
		alias := testutil.SecretStoreAlias
		assert.True(t, store.ContainsAlias(alias))
		assert.True(t, store.IsKeyEntry(alias))
		assert.True(t, store.IsSecretKeyEntry(alias))

		secret, err := store.SecretKey(alias, "")
		require.NoError(t, err)
		assert.Equal(t, testutil.SecretStoreKey, secret)

		secret, err = store.SecretKey(alias, testutil.SecretStorePassphrase)
		require.NoError(t, err)
		assert.Equal(t, testutil.SecretStoreKey, secret)

		_, err = store.SecretKey(alias, "wrong-pass")
		assert.ErrorIs(t, err, ErrKeyMaterial)
		_, err = store.Key(alias, "")
		assert.ErrorIs(t, err, ErrKeyMaterial)
		_, err = store.Certificate(alias)
		assert.ErrorIs(t, err, ErrKeyMaterial)
	})

	t.Run("key entry alongside", func(t *testing.T) {
		alias := testutil.SecretStoreSignerAlias
		assert.True(t, store.IsKeyEntry(alias))
		assert.False(t, store.IsSecretKeyEntry(alias))

		key, err := store.Key(alias, "")
		require.NoError(t, err)
		cert, err := store.Certificate(alias)
		require.NoError(t, err)
		assert.Equal(t, "signer", cert.Subject.CommonName)

		signer, ok := key.(crypto.Signer)
		require.True(t, ok)
		assert.True(t, cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool }).Equal(signer.Public()))

		_, err = store.SecretKey(alias, "")
		assert.ErrorIs(t, err, ErrKeyMaterial)
	})

	t.Run("missing alias", func(t *testing.T) {
		_, err := store.SecretKey("missing", "")
		require.ErrorIs(t, err, ErrKeyMaterial)
		assert.Contains(t, err.Error(), "cannot find key with alias: missing")
		assert.False(t, store.IsSecretKeyEntry("missing"))
	})
}

func TestLoad_PKCS12_SecretKeyWrongPassphrase(t *testing.T) {
	_, err := Load(bytes.NewReader(testutil.SecretStorePKCS12()), PKCS12, "wrong-pass")
	assert.ErrorIs(t, err, ErrKeyMaterial)
}

func TestReadSafeBags_WrongPassphrase(t *testing.T) {
	_, _, err := readSafeBags(testutil.SecretStorePKCS12(), "wrong-pass")
	assert.ErrorIs(t, err, errIncorrectPFXPass)
}

func TestReadSafeBags_Truncated(t *testing.T) {
	data := testutil.SecretStorePKCS12()
	_, _, err := readSafeBags(data[:len(data)/2], testutil.SecretStorePassphrase)
	assert.ErrorIs(t, err, errMalformedPFX)
}

func TestJKS_HasNoSecretEntries(t *testing.T) {
	leaf, _ := newChain(t)
	data, err := testutil.BuildJKS(storePass, testutil.JKSEntry{Alias: "server", KeyPair: leaf, KeyPassword: keyPass})
	require.NoError(t, err)

	store, err := Load(bytes.NewReader(data), JKS, storePass)
	require.NoError(t, err)
	assert.False(t, store.IsSecretKeyEntry("server"))
	_, err = store.SecretKey("server", keyPass)
	assert.ErrorIs(t, err, ErrKeyMaterial)
}

func TestPKCS12KDF(t *testing.T) {
	tests := []struct {
		name       string
		salt       string
		password   []byte
		iterations int
		want       string
	}{
		{"rfc 7292 vector", "0a58cf64530d823f", bmpString("smeg"), 1,
			"8aaae6297b6cb04642ab5b077851284eb7128f1a2a7fbca3"},
		{"long key", "ffffffffffffffff", bmpString("sesame"), 2048,
			"7cd9fd3e2b3be7691a44e3bef0f9ea0fb9b897d4e325d9d1"},
		{"leading zero carry", "f37e05b518324b4b", []byte{0, 0}, 2048,
			"00f759ff47d14dd03665d5943cb3c4a39a2555c02aed66e1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			salt, err := hex.DecodeString(tt.salt)
			require.NoError(t, err)
			key := pkcs12KDF(sha1.New, salt, tt.password, tt.iterations, pkcs12KeyID, 24)
			assert.Equal(t, tt.want, hex.EncodeToString(key))
		})
	}
}

func TestBMPString(t *testing.T) {
	assert.Equal(t, []byte{0, 0}, bmpString(""))
	assert.Equal(t, []byte{0, 'p', 0, 'w', 0, 0}, bmpString("pw"))
	assert.Equal(t, "mac1", decodeBMPString([]byte{0, 'm', 0, 'a', 0, 'c', 0, '1'}))
	assert.Equal(t, "mac1", decodeBMPString(bmpString("mac1")))
}

func TestLoad_JKS(t *testing.T) {
	leaf, ca := newChain(t)
	data, err := testutil.BuildJKS(storePass,
		testutil.JKSEntry{Alias: "Server", KeyPair: leaf, Chain: []*testutil.KeyPair{ca}, KeyPassword: keyPass},
		testutil.JKSEntry{Alias: "ca", KeyPair: ca, Trusted: true},
	)
	require.NoError(t, err)

	store, err := Load(bytes.NewReader(data), JKS, storePass)
	require.NoError(t, err)
	assert.Equal(t, JKS, store.Format())
	assert.ElementsMatch(t, []string{"ca", "server"}, store.Aliases())
	assert.True(t, store.IsKeyEntry("server"))
	assert.False(t, store.IsKeyEntry("ca"))

	key, err := store.Key("server", keyPass)
	require.NoError(t, err)
	assert.NotNil(t, key)

	_, err = store.Key("SERVER", keyPass)
	assert.NoError(t, err)

	chain, err := store.CertificateChain("server")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.True(t, chain[0].Equal(leaf.Cert))

	cert, err := store.Certificate("ca")
	require.NoError(t, err)
	assert.True(t, cert.Equal(ca.Cert))
}

func TestStore_KeyErrorsAreIndistinguishable(t *testing.T) {
	leaf, ca := newChain(t)
	data, err := testutil.BuildJKS(storePass,
		testutil.JKSEntry{Alias: "server", KeyPair: leaf, KeyPassword: keyPass},
		testutil.JKSEntry{Alias: "ca", KeyPair: ca, Trusted: true},
	)
	require.NoError(t, err)

	store, err := Load(bytes.NewReader(data), JKS, storePass)
	require.NoError(t, err)

	tests := []struct {
		name  string
		alias string
		pass  string
	}{
		{"missing alias", "missing", keyPass},
		{"wrong passphrase", "server", "wrong-pass"},
		{"trusted entry", "ca", keyPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Key(tt.alias, tt.pass)
			require.ErrorIs(t, err, ErrKeyMaterial)
			assert.Contains(t, err.Error(), "cannot find key with alias: "+tt.alias)
		})
	}

	_, err = store.Certificate("missing")
	require.ErrorIs(t, err, ErrKeyMaterial)
	assert.Contains(t, err.Error(), "cannot find certificate with alias: missing")
}

func TestLoad_WrongStorePassphrase(t *testing.T) {
	leaf, _ := newChain(t)

	p12, err := testutil.BuildPKCS12(leaf, storePass)
	require.NoError(t, err)
	jks, err := testutil.BuildJKS(storePass, testutil.JKSEntry{Alias: "server", KeyPair: leaf, KeyPassword: keyPass})
	require.NoError(t, err)

	_, err = Load(bytes.NewReader(p12), PKCS12, "wrong-pass")
	assert.ErrorIs(t, err, ErrKeyMaterial)

	_, err = Load(bytes.NewReader(jks), JKS, "wrong-pass")
	assert.ErrorIs(t, err, ErrKeyMaterial)
}

func TestLoad_Malformed(t *testing.T) {
	for _, format := range []Format{PKCS12, JKS} {
		t.Run(format.String(), func(t *testing.T) {
			_, err := Load(bytes.NewReader([]byte("not a container")), format, storePass)
			assert.ErrorIs(t, err, ErrKeyMaterial)
			assert.NotErrorIs(t, err, ErrIO)
		})
	}
}

func TestLoad_ReadFailure(t *testing.T) {
	_, err := Load(iotest.ErrReader(errors.New("disk gone")), PKCS12, storePass)
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrKeyMaterial)
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestLoad_ClosesStream(t *testing.T) {
	rc := &trackingCloser{Reader: bytes.NewReader([]byte("junk"))}
	_, _ = Load(rc, PKCS12, storePass)
	assert.True(t, rc.closed)
}

func TestLoadFile(t *testing.T) {
	leaf, _ := newChain(t)
	data, err := testutil.BuildPKCS12(leaf, storePass)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/keys/server.p12", data, 0o600))

	store, err := LoadFile(fs, "/keys/server.p12", PKCS12, storePass)
	require.NoError(t, err)
	assert.Len(t, store.Aliases(), 1)

	_, err = LoadFile(fs, "/keys/missing.p12", PKCS12, storePass)
	assert.ErrorIs(t, err, ErrIO)
}

func TestCrossFormatEquivalence(t *testing.T) {
	leaf, _ := newChain(t)

	p12, err := testutil.BuildPKCS12(leaf, storePass)
	require.NoError(t, err)
	jks, err := testutil.BuildJKS(storePass, testutil.JKSEntry{Alias: "1", KeyPair: leaf, KeyPassword: storePass})
	require.NoError(t, err)

	s1, err := Load(bytes.NewReader(p12), PKCS12, storePass)
	require.NoError(t, err)
	s2, err := Load(bytes.NewReader(jks), JKS, storePass)
	require.NoError(t, err)

	k1, err := s1.Key("1", storePass)
	require.NoError(t, err)
	k2, err := s2.Key("1", storePass)
	require.NoError(t, err)
	assert.True(t, k1.(interface{ Equal(crypto.PrivateKey) bool }).Equal(k2))

	p1, err := s1.PublicKey("1")
	require.NoError(t, err)
	p2, err := s2.PublicKey("1")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

type mapOpener map[string][]byte

func (m mapOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	data, ok := m[location]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestLoadFirst(t *testing.T) {
	leaf, _ := newChain(t)
	data, err := testutil.BuildPKCS12(leaf, storePass)
	require.NoError(t, err)

	opener := mapOpener{
		"broken.p12": []byte("garbage"),
		"good.p12":   data,
	}

	store, location, err := LoadFirst(context.Background(), opener, PKCS12, storePass,
		"missing.p12", "broken.p12", "good.p12")
	require.NoError(t, err)
	assert.Equal(t, "good.p12", location)
	assert.Len(t, store.Aliases(), 1)

	_, _, err = LoadFirst(context.Background(), opener, PKCS12, storePass, "missing.p12", "broken.p12")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, ErrKeyMaterial)

	_, _, err = LoadFirst(context.Background(), opener, PKCS12, storePass)
	assert.ErrorIs(t, err, ErrNoLocations)
}

func TestLoadFirst_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := LoadFirst(ctx, mapOpener{}, PKCS12, storePass, "a.p12")
	assert.ErrorIs(t, err, context.Canceled)
}
