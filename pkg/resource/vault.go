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
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig holds the settings for a Vault client. Empty fields fall back
// to the VAULT_* environment variables read by the Vault SDK.
type VaultConfig struct {
	Address   string `yaml:"address" json:"address"`
	Token     string `yaml:"token" json:"token"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// NewVaultClient creates a Vault API client from cfg.
func NewVaultClient(cfg VaultConfig) (*vault.Client, error) {
	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, fmt.Errorf("failed to read Vault environment: %w", vcfg.Error)
	}
	if cfg.Address != "" {
		vcfg.Address = cfg.Address
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return client, nil
}

// vaultReader is the subset of *vault.Logical used by VaultProvider.
type vaultReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

// VaultProvider reads secrets with keys of the form "path#field". The field
// defaults to "value". KV version 2 responses are unwrapped.
type VaultProvider struct {
	reader vaultReader
}

// NewVaultProvider returns a provider backed by client.
func NewVaultProvider(client *vault.Client) *VaultProvider {
	return &VaultProvider{reader: client.Logical()}
}

// Lookup implements Provider.
func (p *VaultProvider) Lookup(ctx context.Context, key string) (string, bool, error) {
	path, field, ok := strings.Cut(key, "#")
	if !ok || field == "" {
		field = "value"
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return "", false, fmt.Errorf("empty Vault path")
	}

	secret, err := p.reader.ReadWithContext(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("failed to read Vault path %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]any); ok {
		if _, v2 := data["metadata"]; v2 {
			data = nested
		}
	}
	v, ok := data[field]
	if !ok || v == nil {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}
