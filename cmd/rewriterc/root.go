// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/config"
	"github.com/walteh/rewriterc/pkg/log"
	"github.com/walteh/rewriterc/pkg/rule"
	"github.com/walteh/rewriterc/pkg/state"
	"github.com/walteh/rewriterc/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

// 🔧 rootOpts holds the persistent flags shared by every command
type rootOpts struct {
	configFile string
	root       string
	debug      bool
	mode       string
	workers    int
}

// 📦 env is everything a command needs once flags and config are resolved
type env struct {
	cfg *config.Config
	set *rule.RuleSet
	ws  *workspace.Workspace
	st  *state.State
	ui  *log.Logger
}

// NewCommand creates the rewriterc root command
func NewCommand() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:   "rewriterc",
		Short: "Apply declarative source rewrite rules across a tree",
		Long: `rewriterc applies a declarative set of literal, regex and structural rewrite
rules to a tree of source files. Every rule matches against the original text,
overlaps are resolved deterministically, and nothing is written unless the
batch mode allows it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if opts.debug {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
				Level(level).With().Timestamp().Logger()
			cmd.SetContext(logger.WithContext(cmd.Context()))
		},
	}

	addRootFlags(cmd, opts)

	cmd.AddCommand(
		newCheckCmd(opts),
		newApplyCmd(opts),
		newDiffCmd(opts),
		newRulesCmd(opts),
		newCleanCmd(opts),
		newRestoreCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, opts *rootOpts) {
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "rule file path (default: .rewriterc.{yaml,yml,json,hcl,toml} in --root)")
	cmd.PersistentFlags().StringVar(&opts.root, "root", ".", "directory the file ids are relative to")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.mode, "mode", "", "override the batch mode (atomic or best-effort)")
	cmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "override the number of concurrent files")
}

// loadEnv resolves the rule file, applies flag overrides and builds the rule set
func loadEnv(cmd *cobra.Command, opts *rootOpts) (*env, error) {
	ctx := cmd.Context()

	path := opts.configFile
	if path == "" {
		found, err := config.Find(opts.root)
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}

	if opts.mode != "" {
		mode, err := batch.ParseMode(opts.mode)
		if err != nil {
			return nil, errors.Errorf("--mode: %w", err)
		}
		cfg.Mode = string(mode)
	}
	if cmd.Flags().Changed("workers") {
		if opts.workers < 0 {
			return nil, errors.New("--workers: must not be negative")
		}
		cfg.Workers = opts.workers
	}

	set, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(opts.root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, errors.Errorf("opening workspace: %w", err)
	}
	ws.Ignore(path)
	ws.Ignore(filepath.Join(ws.Root(), state.LockFileName))

	st := state.New(ws)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("config", path).
		Str("root", ws.Root()).
		Str("mode", cfg.Mode).
		Int("rules", set.Len()).
		Msg("environment ready")

	// console lines are only mirrored into the structured log when debugging
	mirror := zerolog.Nop()
	if opts.debug {
		mirror = *zerolog.Ctx(ctx)
	}

	return &env{
		cfg: cfg,
		set: set,
		ws:  ws,
		st:  st,
		ui:  log.New(cmd.OutOrStdout(), mirror),
	}, nil
}

func contextWithCommand(ctx context.Context, name string) context.Context {
	return zerolog.Ctx(ctx).With().Str("command", name).Logger().WithContext(ctx)
}
