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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-turbocharger/pkg/token"
)

func (a *app) newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify JWTs",
	}
	cmd.PersistentFlags().String("algorithm", "", "configured algorithm; defaults to tokens.algorithm")
	cmd.AddCommand(a.newTokenIssueCmd(), a.newTokenVerifyCmd())
	return cmd
}

func (a *app) newTokenIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed JWT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var claims map[string]any
			if raw := a.v.GetString("claims"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &claims); err != nil {
					return fmt.Errorf("invalid --claims: %w", err)
				}
			}
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			tok, err := reg.IssueToken(a.v.GetString("algorithm"), a.v.GetString("subject"), claims)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintToken(tok)
		},
	}
	cmd.Flags().String("subject", "", "sub claim")
	cmd.Flags().String("claims", "", "extra claims as a JSON object")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (a *app) newTokenVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a JWT and print its claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			compact, err := readInput(cmd, a.v.GetString("token"))
			if err != nil {
				return err
			}
			reg, err := a.loadRegistry(cmd)
			if err != nil {
				return err
			}
			claims, err := reg.VerifyToken(a.v.GetString("algorithm"), compact)
			if err != nil {
				if isTokenRejection(err) {
					if perr := a.printer(cmd).PrintVerification(false, err); perr != nil {
						return perr
					}
					return errInvalid
				}
				return err
			}
			return a.printer(cmd).PrintClaims(claims)
		},
	}
	cmd.Flags().String("token", "", "compact JWT, or - for stdin")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func isTokenRejection(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenExpired,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenInvalidClaims,
		token.ErrAlgorithmMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
