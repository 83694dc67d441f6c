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
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AzureConfig holds the settings for an Azure Key Vault secrets client.
// Without a complete service principal, DefaultAzureCredential is used.
type AzureConfig struct {
	VaultURL     string `yaml:"vault_url" json:"vault_url"`
	TenantID     string `yaml:"tenant_id" json:"tenant_id"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
}

// NewAzureCredential returns a client secret credential when cfg carries a
// service principal, else the default credential chain.
func NewAzureCredential(cfg AzureConfig) (azcore.TokenCredential, error) {
	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret,
			&azidentity.ClientSecretCredentialOptions{AdditionallyAllowedTenants: []string{"*"}})
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		return cred, nil
	}
	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		AdditionallyAllowedTenants: []string{"*"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}

type secretGetter interface {
	GetSecret(ctx context.Context, name, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKVProvider reads Key Vault secrets with keys of the form "name" or
// "name/version".
type AzureKVProvider struct {
	client secretGetter
}

// NewAzureKVProvider creates a provider for the vault at cfg.VaultURL.
func NewAzureKVProvider(cfg AzureConfig) (*AzureKVProvider, error) {
	if cfg.VaultURL == "" {
		return nil, errors.New("azure key vault URL is required")
	}
	cred, err := NewAzureCredential(cfg)
	if err != nil {
		return nil, err
	}
	client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
	}
	return &AzureKVProvider{client: client}, nil
}

// Lookup implements Provider.
func (p *AzureKVProvider) Lookup(ctx context.Context, key string) (string, bool, error) {
	name, version, _ := strings.Cut(key, "/")
	resp, err := p.client.GetSecret(ctx, name, version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return *resp.Value, true, nil
}
