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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/internal/registry"
	"github.com/jeremyhahn/go-turbocharger/pkg/logging"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
)

// envPrefix namespaces environment overrides of command flags, for example
// TURBO_OUTPUT=json or TURBO_STOREPASS.
const envPrefix = "TURBO"

// app carries state shared by every subcommand.
type app struct {
	v  *viper.Viper
	fs afero.Fs
}

// Execute runs the root command and prints any error to stderr in the
// selected output format.
func Execute() error {
	rootCmd := NewRootCmd(afero.NewOsFs())
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errInvalid) {
		printError(rootCmd, err)
	}
	return err
}

// NewRootCmd builds the turbo command tree on fs.
func NewRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{v: viper.New(), fs: fs}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "turbo",
		Short: "go-turbocharger CLI - keystores, signatures, tokens and IDs",
		Long: `turbo inspects PKCS#12, JKS and PEM key material and drives the
signing algorithms, JWT issuance and Snowflake IDs described by a
turbocharger configuration file.

Every flag can also be set through the environment with the TURBO_
prefix, for example TURBO_CONFIG or TURBO_STOREPASS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the flags of the command actually being run
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			_, err := ParseOutputFormat(a.v.GetString("output"))
			return err
		},
	}

	rootCmd.PersistentFlags().String("config", "turbo.yaml", "config file")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		a.newKeystoreCmd(),
		a.newPEMCmd(),
		a.newAlgorithmsCmd(),
		a.newSignCmd(),
		a.newVerifyCmd(),
		a.newTokenCmd(),
		a.newJWKSCmd(),
		a.newIDCmd(),
		a.newVersionCmd(),
	)
	return rootCmd
}

func (a *app) printer(cmd *cobra.Command) *Printer {
	format, err := ParseOutputFormat(a.v.GetString("output"))
	if err != nil {
		format = OutputFormatText
	}
	return NewPrinter(format, cmd.OutOrStdout())
}

// printVerbose prints a message if verbose mode is enabled
func (a *app) printVerbose(cmd *cobra.Command, format string, args ...any) {
	if a.v.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}

func (a *app) logger(cmd *cobra.Command) logging.Logger {
	if !a.v.GetBool("verbose") {
		return logging.NewNop()
	}
	l, err := logging.New(logging.Config{Level: "debug", Format: "text", Output: cmd.ErrOrStderr()})
	if err != nil {
		return logging.NewNop()
	}
	return l
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := a.v.GetString("config")
	a.printVerbose(cmd, "Loading configuration from %s", path)
	cfg, err := config.LoadFs(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadRegistry builds every configured algorithm from the config file.
func (a *app) loadRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := a.logger(cmd)
	resolver, err := registry.NewResolver(cfg.Resolvers, a.fs)
	if err != nil {
		return nil, err
	}
	opener := resource.NewOpener(resource.WithFs(a.fs), resource.WithLogger(logger))
	reg, err := registry.NewBuilder(opener, resolver, logger).Build(cmdContext(cmd), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	a.printVerbose(cmd, "Loaded %d algorithms", reg.Len())
	return reg, nil
}

// resolve expands ${provider:key} placeholders in flag values using the
// environment and file providers.
func (a *app) resolve(cmd *cobra.Command, s string) (string, error) {
	r := resource.NewResolver(
		resource.WithProvider("env", resource.EnvProvider()),
		resource.WithProvider("file", resource.FileProvider(a.fs)),
	)
	return r.Resolve(cmdContext(cmd), s)
}

func (a *app) opener(cmd *cobra.Command) *resource.Opener {
	return resource.NewOpener(resource.WithFs(a.fs), resource.WithLogger(a.logger(cmd)))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readInput returns s, or standard input when s is "-".
func readInput(cmd *cobra.Command, s string) (string, error) {
	if s != "-" {
		return s, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// errInvalid marks a verification failure that was already reported.
var errInvalid = errors.New("invalid")

func printError(rootCmd *cobra.Command, err error) {
	format := OutputFormatText
	if f := rootCmd.PersistentFlags().Lookup("output"); f != nil {
		if parsed, perr := ParseOutputFormat(f.Value.String()); perr == nil {
			format = parsed
		}
	}
	_ = NewPrinter(format, rootCmd.ErrOrStderr()).PrintError(err) // best-effort
}
