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

package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Env(t *testing.T) {
	t.Setenv("TURBO_TEST_STOREPASS", "changeit")
	r := NewResolver()
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${env:TURBO_TEST_STOREPASS}", "changeit"},
		{"${TURBO_TEST_STOREPASS}", "changeit"},
		{"pass=${TURBO_TEST_STOREPASS};", "pass=changeit;"},
		{"${env:TURBO_TEST_UNSET:-fallback}", "fallback"},
		{"${TURBO_TEST_UNSET:-}", ""},
		{"${TURBO_TEST_UNSET:-a:b}", "a:b"},
		{"${TURBO_TEST_STOREPASS}-${TURBO_TEST_STOREPASS}", "changeit-changeit"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	r := NewResolver(WithProvider("broken", ProviderFunc(func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("backend down")
	})))
	ctx := context.Background()

	for _, in := range []string{
		"${env:TURBO_TEST_UNSET}",
		"${nope:key}",
		"${env:}",
		"${unterminated",
		"${broken:key:-default}",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := r.Resolve(ctx, in)
			assert.ErrorIs(t, err, ErrUnresolved)
		})
	}
}

func TestResolver_Providers(t *testing.T) {
	r := NewResolver(WithProvider("FILE", FileProvider(afero.NewMemMapFs())))
	assert.ElementsMatch(t, []string{"env", "file"}, r.Providers())
}

func TestFileProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/run/secrets/storepass", []byte("s3cret\n"), 0o600))
	r := NewResolver(WithProvider("file", FileProvider(fs)))

	got, err := r.Resolve(context.Background(), "${file:/run/secrets/storepass}")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	got, err = r.Resolve(context.Background(), "${file:/run/secrets/missing:-none}")
	require.NoError(t, err)
	assert.Equal(t, "none", got)
}

func newVaultServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors":["permission denied"]}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/secret/data/turbo":
			fmt.Fprint(w, `{"data":{"data":{"storepass":"changeit","port":8200},"metadata":{"version":3}}}`)
		case "/v1/kv/turbo":
			fmt.Fprint(w, `{"data":{"value":"v1-secret"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors":[]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultProvider(t *testing.T) {
	srv := newVaultServer(t)
	client, err := NewVaultClient(VaultConfig{Address: srv.URL, Token: "root"})
	require.NoError(t, err)
	p := NewVaultProvider(client)
	ctx := context.Background()

	tests := []struct {
		key   string
		want  string
		found bool
	}{
		{"secret/data/turbo#storepass", "changeit", true},
		{"/secret/data/turbo#port", "8200", true},
		{"secret/data/turbo#missing", "", false},
		{"kv/turbo", "v1-secret", true},
		{"secret/data/absent#storepass", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, found, err := p.Lookup(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, err = p.Lookup(ctx, "#field")
	assert.Error(t, err)
}

func TestVaultProvider_Denied(t *testing.T) {
	srv := newVaultServer(t)
	client, err := NewVaultClient(VaultConfig{Address: srv.URL, Token: "wrong"})
	require.NoError(t, err)

	r := NewResolver(WithProvider("vault", NewVaultProvider(client)))
	_, err = r.Resolve(context.Background(), "${vault:secret/data/turbo#storepass}")
	assert.ErrorIs(t, err, ErrUnresolved)
}

type fakeSecrets struct {
	secrets map[string]string
	err     error
}

func (f *fakeSecrets) GetSecret(_ context.Context, name, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	if f.err != nil {
		return azsecrets.GetSecretResponse{}, f.err
	}
	key := name
	if version != "" {
		key += "/" + version
	}
	v, ok := f.secrets[key]
	if !ok {
		req := httptest.NewRequest(http.MethodGet, "https://vault.example.com/secrets/"+name, nil)
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{
			StatusCode:  http.StatusNotFound,
			ErrorCode:   "SecretNotFound",
			RawResponse: &http.Response{StatusCode: http.StatusNotFound, Request: req},
		}
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
}

func TestAzureKVProvider(t *testing.T) {
	p := &AzureKVProvider{client: &fakeSecrets{secrets: map[string]string{
		"hmac-key":       "latest",
		"hmac-key/abc12": "pinned",
	}}}
	r := NewResolver(WithProvider("azkv", p))
	ctx := context.Background()

	got, err := r.Resolve(ctx, "${azkv:hmac-key}")
	require.NoError(t, err)
	assert.Equal(t, "latest", got)

	got, err = r.Resolve(ctx, "${azkv:hmac-key/abc12}")
	require.NoError(t, err)
	assert.Equal(t, "pinned", got)

	got, err = r.Resolve(ctx, "${azkv:absent:-default}")
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	failing := &AzureKVProvider{client: &fakeSecrets{err: errors.New("network down")}}
	_, _, err = failing.Lookup(ctx, "hmac-key")
	assert.ErrorContains(t, err, "network down")
}

func TestNewAzureKVProvider_RequiresURL(t *testing.T) {
	_, err := NewAzureKVProvider(AzureConfig{})
	assert.Error(t, err)
}
