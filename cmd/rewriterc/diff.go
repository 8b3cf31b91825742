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
	"github.com/spf13/cobra"
	"github.com/walteh/rewriterc/pkg/report"
	"gitlab.com/tozd/go/errors"
)

// newDiffCmd creates the diff command
func newDiffCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the pending rewrite as a unified diff",
		Long: `Diff runs the rules without writing and prints one unified diff for every
changed file, suitable for git apply. The exit code follows check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextWithCommand(cmd.Context(), "diff")

			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			b, rep, err := e.run(ctx)
			if err != nil {
				return err
			}

			out, err := report.UnifiedDiff(b.Results)
			if err != nil {
				return errors.Errorf("rendering diff: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return errors.Errorf("writing diff: %w", err)
			}
			return outcomeError(rep)
		},
	}

	return cmd
}
