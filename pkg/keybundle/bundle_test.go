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

package keybundle

import (
	"bytes"
	"context"
	"crypto"
	"crypto/elliptic"
	"crypto/x509"
	"io"
	"os"
	"testing"

	"github.com/jeremyhahn/go-turbocharger/internal/testutil"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storePass = "changeit"

type mapOpener map[string][]byte

func (m mapOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	data, ok := m[location]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestFromStore(t *testing.T) {
	kp := testutil.MustRSA(t, 2048, x509.SHA256WithRSA)
	data, err := testutil.BuildPKCS12(kp, storePass)
	require.NoError(t, err)

	store, err := keystore.Load(bytes.NewReader(data), keystore.PKCS12, storePass)
	require.NoError(t, err)

	bundle, err := FromStore(store, "1", storePass)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, bundle.Source())
	assert.Equal(t, "1", bundle.Alias())
	assert.True(t, bundle.HasPrivateKey())
	assert.False(t, bundle.IsSecret())

	cert, err := bundle.Certificate()
	require.NoError(t, err)
	pub, err := bundle.PublicKey()
	require.NoError(t, err)
	assert.Equal(t, cert.PublicKey, pub)

	_, err = FromStore(store, "missing", storePass)
	assert.ErrorIs(t, err, keystore.ErrKeyMaterial)
}

func TestFromStore_SecretKey(t *testing.T) {
	store, err := keystore.Load(bytes.NewReader(testutil.SecretStorePKCS12()),
		keystore.PKCS12, testutil.SecretStorePassphrase)
	require.NoError(t, err)

	bundle, err := FromStore(store, testutil.SecretStoreAlias, testutil.SecretStorePassphrase)
	require.NoError(t, err)
	assert.Equal(t, SourceSecret, bundle.Source())
	assert.Equal(t, testutil.SecretStoreAlias, bundle.Alias())
	assert.True(t, bundle.IsSecret())
	assert.False(t, bundle.HasPrivateKey())
	assert.Equal(t, testutil.SecretStoreKey, bundle.Secret())
	_, err = bundle.Leaf()
	assert.ErrorIs(t, err, ErrNoCertificate)

	_, err = FromStore(store, testutil.SecretStoreAlias, "wrong-pass")
	assert.ErrorIs(t, err, keystore.ErrKeyMaterial)

	signer, err := FromStore(store, testutil.SecretStoreSignerAlias, "")
	require.NoError(t, err)
	assert.Equal(t, SourceStore, signer.Source())
	assert.True(t, signer.HasPrivateKey())
}

func TestFromPEM(t *testing.T) {
	ca := testutil.MustECDSA(t, elliptic.P256())
	leaf, err := testutil.GenerateLeaf(ca, "leaf")
	require.NoError(t, err)

	t.Run("plain key with chain", func(t *testing.T) {
		text, err := leaf.PEM(nil, ca)
		require.NoError(t, err)

		bundle, err := FromPEM(text, "")
		require.NoError(t, err)
		assert.Equal(t, SourcePEM, bundle.Source())
		require.Len(t, bundle.CertificateChain(), 2)
		assert.True(t, bundle.CertificateChain()[0].Equal(leaf.Cert))

		_, err = bundle.Certificate()
		assert.ErrorIs(t, err, ErrChainLength)

		pub, err := bundle.PublicKey()
		require.NoError(t, err)
		assert.Equal(t, leaf.Cert.PublicKey, pub)
	})

	t.Run("encrypted key", func(t *testing.T) {
		text, err := leaf.PEM([]byte("pem-pass"))
		require.NoError(t, err)

		bundle, err := FromPEM(text, "pem-pass")
		require.NoError(t, err)
		assert.True(t, bundle.HasPrivateKey())

		_, err = FromPEM(text, "wrong")
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = FromPEM(text, "")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("certificate only", func(t *testing.T) {
		bundle, err := FromPEM(leaf.CertPEM, "")
		require.NoError(t, err)
		assert.False(t, bundle.HasPrivateKey())
	})

	t.Run("no certificates", func(t *testing.T) {
		_, err := FromPEM(leaf.KeyPEM, "")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("mismatched key", func(t *testing.T) {
		text := append(append([]byte{}, leaf.CertPEM...), ca.KeyPEM...)
		_, err := FromPEM(text, "")
		assert.ErrorIs(t, err, ErrKeyMismatch)
	})
}

func TestFromPEM_MatchesStore(t *testing.T) {
	kp := testutil.MustRSA(t, 2048, x509.SHA256WithRSA)
	data, err := testutil.BuildPKCS12(kp, storePass)
	require.NoError(t, err)
	store, err := keystore.Load(bytes.NewReader(data), keystore.PKCS12, storePass)
	require.NoError(t, err)

	fromStore, err := FromStore(store, "1", "")
	require.NoError(t, err)

	text, err := kp.PEM(nil)
	require.NoError(t, err)
	fromPEM, err := FromPEM(text, "")
	require.NoError(t, err)

	p1, _ := fromStore.PublicKey()
	p2, _ := fromPEM.PublicKey()
	assert.Equal(t, p1, p2)
	assert.True(t, fromStore.PrivateKey().(interface{ Equal(crypto.PrivateKey) bool }).Equal(fromPEM.PrivateKey()))
}

func TestFromSecret(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	bundle, err := FromSecret("mac1", secret)
	require.NoError(t, err)
	assert.True(t, bundle.IsSecret())
	assert.Equal(t, secret, bundle.Secret())

	secret[0] = 'x'
	assert.NotEqual(t, secret, bundle.Secret())

	_, err = bundle.PublicKey()
	assert.ErrorIs(t, err, ErrNoCertificate)

	_, err = FromSecret("mac1", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFromCertificate(t *testing.T) {
	kp := testutil.MustECDSA(t, elliptic.P384())
	bundle, err := FromCertificate(kp.Cert)
	require.NoError(t, err)
	assert.Equal(t, SourceCertificate, bundle.Source())
	assert.False(t, bundle.HasPrivateKey())

	_, err = FromCertificate()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStoreBuilder(t *testing.T) {
	kp := testutil.MustECDSA(t, elliptic.P256())
	p12, err := testutil.BuildPKCS12(kp, storePass)
	require.NoError(t, err)
	jks, err := testutil.BuildJKS(storePass, testutil.JKSEntry{Alias: "server", KeyPair: kp, KeyPassword: "keypass1"})
	require.NoError(t, err)

	opener := mapOpener{"server.p12": p12, "server.jks": jks}
	ctx := context.Background()

	t.Run("pkcs12", func(t *testing.T) {
		bundle, err := NewStoreBuilder(opener).
			Alias("1").
			StorePassphrase(storePass).
			Location("server.p12").
			Build(ctx)
		require.NoError(t, err)
		assert.True(t, bundle.HasPrivateKey())
	})

	t.Run("jks", func(t *testing.T) {
		bundle, err := NewStoreBuilder(opener).
			Location("server.jks").
			Format(keystore.JKS).
			StorePassphrase(storePass).
			Alias("server").
			KeyPassphrase("keypass1").
			Build(ctx)
		require.NoError(t, err)
		assert.Equal(t, "server", bundle.Alias())
	})

	t.Run("fallback", func(t *testing.T) {
		_, err := NewStoreBuilder(opener).
			Location("missing.p12").
			Fallback("server.p12").
			StorePassphrase(storePass).
			Alias("1").
			Build(ctx)
		require.NoError(t, err)
	})

	t.Run("missing resource", func(t *testing.T) {
		_, err := NewStoreBuilder(opener).Location("missing.p12").Alias("1").Build(ctx)
		assert.ErrorIs(t, err, keystore.ErrIO)
	})

	tests := []struct {
		name    string
		builder *StoreBuilder
		field   string
	}{
		{"no location", NewStoreBuilder(opener).Alias("1"), "location"},
		{"blank location", NewStoreBuilder(opener).Location("  ").Alias("1"), "location"},
		{"no alias", NewStoreBuilder(opener).Location("server.p12"), "alias"},
		{"no opener", NewStoreBuilder(nil).Location("server.p12").Alias("1"), "opener"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build(ctx)
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestPEMBuilder(t *testing.T) {
	kp := testutil.MustRSA(t, 2048, x509.SHA384WithRSA)
	text, err := kp.PEM([]byte("pem-pass"))
	require.NoError(t, err)

	opener := mapOpener{"server.pem": text}
	ctx := context.Background()

	bundle, err := NewPEMBuilder(opener).Location("server.pem").KeyPassphrase("pem-pass").Build(ctx)
	require.NoError(t, err)
	assert.True(t, bundle.HasPrivateKey())

	bundle, err = NewPEMBuilder(nil).Text(string(text)).KeyPassphrase("pem-pass").Build(ctx)
	require.NoError(t, err)
	assert.True(t, bundle.HasPrivateKey())

	_, err = NewPEMBuilder(opener).Build(ctx)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewPEMBuilder(opener).Location("missing.pem").Build(ctx)
	assert.ErrorIs(t, err, keystore.ErrIO)
}
