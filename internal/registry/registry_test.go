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

package registry

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/internal/testutil"
	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
	"github.com/jeremyhahn/go-turbocharger/pkg/token"
)

func build(t *testing.T, mutate func(*config.Config)) (*Registry, *testutil.Fixture, error) {
	t.Helper()
	fs := afero.NewMemMapFs()
	fx := testutil.NewFixture(t, fs, "/etc/turbo")
	cfg, err := config.Parse([]byte(fx.ConfigYAML()))
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	resolver, err := NewResolver(cfg.Resolvers, fs)
	require.NoError(t, err)
	b := NewBuilder(resource.NewOpener(resource.WithFs(fs)), resolver, nil)
	r, err := b.Build(context.Background(), cfg)
	return r, fx, err
}

func TestBuild(t *testing.T) {
	r, fx, err := build(t, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"es256", "hs256", "rs256", "sm2"}, r.Names())
	assert.Equal(t, 4, r.Len())

	wantNames := map[string]string{"es256": "ES256", "hs256": "HS256", "rs256": "RS256", "sm2": "SM2"}
	for name, jwtName := range wantNames {
		alg, err := r.Algorithm(name)
		require.NoError(t, err)
		assert.Equal(t, jwtName, alg.Name())
		assert.True(t, alg.CanSign())
	}

	hs, err := r.Algorithm("hs256")
	require.NoError(t, err)
	assert.Equal(t, "mac", hs.KeyID(), "secret bundles use their name as kid")

	server, err := r.Bundle("server")
	require.NoError(t, err)
	cert, err := server.Certificate()
	require.NoError(t, err)
	assert.True(t, cert.Equal(fx.RSA.Cert))

	_, err = r.Algorithm("nope")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	_, err = r.Bundle("nope")
	assert.ErrorIs(t, err, ErrUnknownBundle)
}

func TestRegistry_SignVerify(t *testing.T) {
	r, _, err := build(t, nil)
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"42"}`))

	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			sig, err := r.Sign(name, header, payload)
			require.NoError(t, err)
			require.NoError(t, r.Verify(name, header, payload, sig))

			err = r.Verify(name, header, payload+"x", sig)
			assert.ErrorIs(t, err, algorithm.ErrSignatureVerification)
			assert.Equal(t, "invalid_signature", ErrorType(err))
		})
	}

	_, err = r.Sign("nope", header, payload)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.ErrorIs(t, r.Verify("nope", header, payload, "sig"), ErrUnknownAlgorithm)
}

func TestRegistry_Tokens(t *testing.T) {
	r, _, err := build(t, nil)
	require.NoError(t, err)

	tok, err := r.IssueToken("", "alice", map[string]any{"role": "admin"})
	require.NoError(t, err)

	claims, err := r.VerifyToken("", tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, "turbo", claims["iss"])

	_, err = r.VerifyToken("es256", tok)
	assert.ErrorIs(t, err, token.ErrAlgorithmMismatch)

	tok, err = r.IssueToken("hs256", "bob", nil)
	require.NoError(t, err)
	_, err = r.VerifyToken("hs256", tok)
	assert.NoError(t, err)
}

func TestRegistry_NoTokenAlgorithm(t *testing.T) {
	r := &Registry{algorithms: map[string]algorithm.Algorithm{}}
	_, err := r.IssueToken("", "alice", nil)
	assert.ErrorIs(t, err, ErrNoTokenAlgorithm)
	_, err = r.VerifyToken("", "a.b.c")
	assert.ErrorIs(t, err, ErrNoTokenAlgorithm)
}

func TestRegistry_JWKS(t *testing.T) {
	r, fx, err := build(t, nil)
	require.NoError(t, err)

	set := r.JWKS()
	require.Len(t, set.Keys, 2, "HMAC and SM2 are not published")

	rs, err := r.Algorithm("rs256")
	require.NoError(t, err)
	keys := set.Key(rs.KeyID())
	require.Len(t, keys, 1)
	assert.Equal(t, "RS256", keys[0].Algorithm)
	require.Len(t, keys[0].Certificates, 1)
	assert.True(t, keys[0].Certificates[0].Equal(fx.RSA.Cert))
}

func TestRegistry_TLSCertificate(t *testing.T) {
	r, fx, err := build(t, nil)
	require.NoError(t, err)

	cert, err := r.TLSCertificate("server")
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.True(t, parsed.Equal(fx.RSA.Cert))
	assert.NotNil(t, cert.PrivateKey)

	_, err = r.TLSCertificate("mac")
	assert.Error(t, err)
	_, err = r.TLSCertificate("nope")
	assert.ErrorIs(t, err, ErrUnknownBundle)
}

func TestBuild_Placeholders(t *testing.T) {
	t.Setenv("TURBO_TEST_HMAC", "placeholder-secret-value")
	r, _, err := build(t, func(c *config.Config) {
		c.Algorithms["hs512"] = config.AlgorithmConfig{
			Family:   "hmac",
			Strength: "512",
			Secret:   "${env:TURBO_TEST_HMAC}",
			KeyID:    "${env:TURBO_TEST_KID:-hmac-512}",
		}
	})
	require.NoError(t, err)

	alg, err := r.Algorithm("hs512")
	require.NoError(t, err)
	assert.Equal(t, "HS512", alg.Name())
	assert.Equal(t, "hmac-512", alg.KeyID())

	direct, err := algorithm.NewHMAC(algorithm.Strength512, []byte("placeholder-secret-value"))
	require.NoError(t, err)
	sig, err := direct.Sign("a", "b")
	require.NoError(t, err)
	assert.NoError(t, alg.Verify("a", "b", sig))
}

func TestBuild_Failures(t *testing.T) {
	fs := afero.NewMemMapFs()
	fx := testutil.NewFixture(t, fs, "/etc/turbo")

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		is     error
	}{
		{"wrong store passphrase", func(c *config.Config) {
			b := c.Bundles["server"]
			b.StorePassphrase = "wrongpass"
			c.Bundles["server"] = b
		}, keystore.ErrKeyMaterial},
		{"missing alias", func(c *config.Config) {
			b := c.Bundles["server"]
			b.Alias = "2"
			c.Bundles["server"] = b
		}, keystore.ErrKeyMaterial},
		{"missing file", func(c *config.Config) {
			b := c.Bundles["signer"]
			b.Location = "/etc/turbo/absent.pem"
			c.Bundles["signer"] = b
		}, keystore.ErrIO},
		{"unresolved placeholder", func(c *config.Config) {
			b := c.Bundles["mac"]
			b.Secret = "${env:TURBO_TEST_UNSET_SECRET}"
			c.Bundles["mac"] = b
		}, resource.ErrUnresolved},
		{"family mismatch", func(c *config.Config) {
			c.Algorithms["es256"] = config.AlgorithmConfig{Family: "rsa", Strength: "256", Bundle: "signer"}
		}, algorithm.ErrInvalidConfiguration},
		{"hmac on key bundle", func(c *config.Config) {
			c.Algorithms["hs256"] = config.AlgorithmConfig{Family: "hmac", Strength: "256", Bundle: "server"}
		}, algorithm.ErrInvalidConfiguration},
		{"bad source", func(c *config.Config) {
			c.Bundles["x"] = config.BundleConfig{Source: "ldap"}
		}, keybundle.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(fx.ConfigYAML()))
			require.NoError(t, err)
			tt.mutate(cfg)

			b := NewBuilder(resource.NewOpener(resource.WithFs(fs)), nil, nil)
			_, err = b.Build(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
		})
	}
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(config.ResolversConfig{
		Vault: &resource.VaultConfig{Address: "http://127.0.0.1:8200", Token: "t"},
	}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"env", "file", "vault"}, r.Providers())

	_, err = NewResolver(config.ResolversConfig{AzureKV: &resource.AzureConfig{}}, afero.NewMemMapFs())
	assert.Error(t, err)
}
