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
	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
)

// NewResolver returns a placeholder resolver with the env and file
// providers, plus vault and azkv when configured.
func NewResolver(cfg config.ResolversConfig, fs afero.Fs) (*resource.Resolver, error) {
	opts := []resource.ResolverOption{
		resource.WithProvider("file", resource.FileProvider(fs)),
	}
	if cfg.Vault != nil {
		client, err := resource.NewVaultClient(*cfg.Vault)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resource.WithProvider("vault", resource.NewVaultProvider(client)))
	}
	if cfg.AzureKV != nil {
		p, err := resource.NewAzureKVProvider(*cfg.AzureKV)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resource.WithProvider("azkv", p))
	}
	return resource.NewResolver(opts...), nil
}
