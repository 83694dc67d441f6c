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
	"errors"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
)

func (a *app) newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the algorithms built from the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			rows := make([]AlgorithmRow, 0, reg.Len())
			for _, name := range reg.Names() {
				alg, err := reg.Algorithm(name)
				if err != nil {
					return err
				}
				rows = append(rows, AlgorithmRow{
					Name:      name,
					Algorithm: alg.Name(),
					KeyID:     alg.KeyID(),
					CanSign:   alg.CanSign(),
				})
			}
			return a.printer(cmd).PrintAlgorithms(rows)
		},
	}
}

func (a *app) newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign header.payload with a configured algorithm",
		Long: `Sign computes the base64url signature over the ASCII input
"<header>.<payload>". Pass "-" as the payload to read it from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			payload, err := readInput(cmd, a.v.GetString("payload"))
			if err != nil {
				return err
			}
			name := a.v.GetString("algorithm")
			sig, err := reg.Sign(name, a.v.GetString("header"), payload)
			if err != nil {
				return err
			}
			alg, _ := reg.Algorithm(name)
			return a.printer(cmd).PrintSignature(alg.Name(), sig)
		},
	}
	signingFlags(cmd)
	return cmd
}

func (a *app) newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a base64url signature over header.payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			payload, err := readInput(cmd, a.v.GetString("payload"))
			if err != nil {
				return err
			}
			err = reg.Verify(a.v.GetString("algorithm"), a.v.GetString("header"), payload, a.v.GetString("signature"))
			switch {
			case err == nil:
				return a.printer(cmd).PrintVerification(true, nil)
			case errors.Is(err, algorithm.ErrSignatureVerification):
				if perr := a.printer(cmd).PrintVerification(false, err); perr != nil {
					return perr
				}
				return errInvalid
			default:
				return err
			}
		},
	}
	signingFlags(cmd)
	cmd.Flags().String("signature", "", "base64url signature")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func signingFlags(cmd *cobra.Command) {
	cmd.Flags().String("algorithm", "", "configured algorithm name")
	cmd.Flags().String("header", "", "base64url header segment")
	cmd.Flags().String("payload", "", "base64url payload segment, or - for stdin")
	_ = cmd.MarkFlagRequired("algorithm")
	_ = cmd.MarkFlagRequired("payload")
}
