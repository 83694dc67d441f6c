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

	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
)

func (a *app) newPEMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pem",
		Short: "Inspect PEM key material",
	}

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Load a PEM certificate chain and optional private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPass, err := a.resolve(cmd, a.v.GetString("keypass"))
			if err != nil {
				return err
			}
			bundle, err := keybundle.NewPEMBuilder(a.opener(cmd)).
				Location(a.v.GetString("location")).
				KeyPassphrase(keyPass).
				Build(cmdContext(cmd))
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintBundle(describeBundle(bundle), bundle.CertificateChain())
		},
	}
	inspect.Flags().String("location", "", "PEM location (path, file:, http(s):, base64:)")
	inspect.Flags().String("keypass", "", "passphrase of an encrypted PKCS#8 key")
	_ = inspect.MarkFlagRequired("location")

	cmd.AddCommand(inspect)
	return cmd
}
