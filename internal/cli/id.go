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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-turbocharger/internal/config"
	"github.com/jeremyhahn/go-turbocharger/pkg/snowflake"
)

func (a *app) newIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Generate Snowflake IDs",
		Long: `id generates Snowflake IDs. The worker, datacenter and epoch come
from the snowflake section of the config file when it exists; the flags
override it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count := a.v.GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			sc, err := a.snowflakeConfig(cmd)
			if err != nil {
				return err
			}
			epoch, err := sc.EpochTime()
			if err != nil {
				return err
			}
			gen, err := snowflake.New(sc.WorkerID, sc.DatacenterID, snowflake.WithEpoch(epoch))
			if err != nil {
				return err
			}
			ids, err := gen.NextN(count)
			if err != nil {
				return err
			}
			return a.printer(cmd).PrintIDs(ids)
		},
	}
	cmd.Flags().Int("count", 1, "number of IDs")
	cmd.Flags().Int64("worker", 0, "worker ID (0-31)")
	cmd.Flags().Int64("datacenter", 0, "datacenter ID (0-31)")
	cmd.Flags().String("epoch", "", "custom epoch (RFC 3339)")

	cmd.AddCommand(a.newIDParseCmd())
	return cmd
}

// snowflakeConfig merges the config file's snowflake section with flags.
// A missing default config file is not an error.
func (a *app) snowflakeConfig(cmd *cobra.Command) (config.SnowflakeConfig, error) {
	var sc config.SnowflakeConfig
	if a.exists(a.v.GetString("config")) || cmd.Flags().Changed("config") {
		cfg, err := a.loadConfig(cmd)
		if err != nil {
			return sc, err
		}
		sc = cfg.Snowflake
	}
	if a.changed(cmd, "worker") {
		sc.WorkerID = a.v.GetInt64("worker")
	}
	if a.changed(cmd, "datacenter") {
		sc.DatacenterID = a.v.GetInt64("datacenter")
	}
	if a.changed(cmd, "epoch") {
		sc.Epoch = a.v.GetString("epoch")
	}
	return sc, nil
}

func (a *app) newIDParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <id>",
		Short: "Decompose a Snowflake ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}
			sc, err := a.snowflakeConfig(cmd)
			if err != nil {
				return err
			}
			epoch, err := sc.EpochTime()
			if err != nil {
				return err
			}
			parts := snowflake.Parse(id, epoch)
			p := a.printer(cmd)
			if p.format == OutputFormatJSON {
				return p.printJSON(map[string]any{
					"id":            args[0],
					"time":          parts.Time.UTC().Format(time.RFC3339Nano),
					"datacenter_id": parts.DatacenterID,
					"worker_id":     parts.WorkerID,
					"sequence":      parts.Sequence,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Time:       %s\n", parts.Time.UTC().Format(time.RFC3339Nano))
			fmt.Fprintf(cmd.OutOrStdout(), "Datacenter: %d\n", parts.DatacenterID)
			fmt.Fprintf(cmd.OutOrStdout(), "Worker:     %d\n", parts.WorkerID)
			fmt.Fprintf(cmd.OutOrStdout(), "Sequence:   %d\n", parts.Sequence)
			return nil
		},
	}
	cmd.Flags().String("epoch", "", "custom epoch (RFC 3339)")
	return cmd
}

// changed reports whether a flag was set on the command line or through
// the environment.
func (a *app) changed(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return a.v.IsSet(name)
}

func (a *app) exists(path string) bool {
	_, err := a.fs.Stat(path)
	return err == nil
}
