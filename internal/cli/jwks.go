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

package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) newJWKSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Print the JSON Web Key Set of the publishable algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintJWKS(reg.JWKS())
		},
	}
}
