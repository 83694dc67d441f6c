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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/keybundle"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
)

func (a *app) newKeystoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Inspect PKCS#12 and JKS key containers",
	}
	cmd.PersistentFlags().StringSlice("location", nil,
		"container location (path, file:, http(s):, base64:); repeat for fallbacks")
	cmd.PersistentFlags().String("format", keystore.DefaultFormat.String(), "container format (pkcs12, jks)")
	cmd.PersistentFlags().String("storepass", "", "store passphrase; ${env:NAME} and ${file:PATH} are expanded")

	cmd.AddCommand(a.newKeystoreListCmd(), a.newKeystoreInspectCmd())
	return cmd
}

func (a *app) openStore(cmd *cobra.Command) (*keystore.Store, string, error) {
	locations := a.v.GetStringSlice("location")
	if len(locations) == 0 {
		return nil, "", fmt.Errorf("--location is required")
	}
	format, err := keystore.ParseFormat(a.v.GetString("format"))
	if err != nil {
		return nil, "", err
	}
	pass, err := a.resolve(cmd, a.v.GetString("storepass"))
	if err != nil {
		return nil, "", err
	}
	store, location, err := keystore.LoadFirst(cmdContext(cmd), a.opener(cmd), format, pass, locations...)
	if err != nil {
		return nil, "", err
	}
	a.printVerbose(cmd, "Loaded %s container from %s", format, location)
	return store, location, nil
}

func (a *app) newKeystoreListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the entries of a container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			entries := make([]EntryInfo, 0)
			for _, alias := range store.Aliases() {
				e := EntryInfo{Alias: alias, KeyEntry: store.IsKeyEntry(alias)}
				if cert, err := store.Certificate(alias); err == nil {
					e.Subject = cert.Subject.String()
					e.NotAfter = cert.NotAfter
				}
				entries = append(entries, e)
			}
			return a.printer(cmd).PrintEntries(store.Format().String(), entries)
		},
	}
}

func (a *app) newKeystoreInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load one entry as a key bundle and print its chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			alias := a.v.GetString("alias")
			keyPass := a.v.GetString("keypass")
			if keyPass == "" {
				keyPass = a.v.GetString("storepass")
			}
			keyPass, err = a.resolve(cmd, keyPass)
			if err != nil {
				return err
			}

			var bundle *keybundle.KeyBundle
			if store.IsKeyEntry(alias) {
				bundle, err = keybundle.FromStore(store, alias, keyPass)
			} else {
				chain, cerr := store.CertificateChain(alias)
				if cerr != nil {
					return cerr
				}
				bundle, err = keybundle.FromCertificate(chain...)
			}
			if err != nil {
				return err
			}
			info := describeBundle(bundle)
			info.Alias = alias
			return a.printer(cmd).PrintBundle(info, bundle.CertificateChain())
		},
	}
	cmd.Flags().String("alias", "", "entry alias")
	cmd.Flags().String("keypass", "", "key passphrase; defaults to the store passphrase")
	_ = cmd.MarkFlagRequired("alias")
	return cmd
}

func describeBundle(b *keybundle.KeyBundle) BundleInfo {
	info := BundleInfo{
		Source:        b.Source().String(),
		Alias:         b.Alias(),
		HasPrivateKey: b.HasPrivateKey(),
		Chain:         make([]string, 0, len(b.CertificateChain())),
	}
	for _, c := range b.CertificateChain() {
		info.Chain = append(info.Chain, c.Subject.String())
	}
	if pub, err := b.PublicKey(); err == nil {
		info.KeyType = keyType(pub)
		if tp, err := algorithm.Thumbprint(pub); err == nil {
			info.Thumbprint = tp
		}
	}
	return info
}

func keyType(pub any) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA-%d", k.N.BitLen())
	case *ecdsa.PublicKey:
		return "EC-" + k.Curve.Params().Name
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return fmt.Sprintf("%T", pub)
	}
}
