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
	"github.com/walteh/rewriterc/pkg/workspace"
	"gitlab.com/tozd/go/errors"
)

// newApplyCmd creates the apply command
func newApplyCmd(opts *rootOpts) *cobra.Command {
	var backup bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Rewrite the selected files in place",
		Long: `Apply runs the rules like check and then writes every committed file.

In atomic mode nothing is written unless every file succeeded and verification
passed. In best-effort mode every file that rewrote cleanly is written, unless
verification found overlapping edits.

Run-once rules written to a file are remembered in .rewriterc.lock and are not
applied to that file again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextWithCommand(cmd.Context(), "apply")

			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			e.ui.Header("applying " + e.cfg.String())
			b, rep, err := e.run(ctx)
			if err != nil {
				return err
			}

			e.printFiles(ctx, b)
			e.printFindings(b, rep)

			if rep.Classify() == report.Failure {
				e.ui.Error("nothing written")
			} else {
				written, err := e.ws.Commit(ctx, b, workspace.CommitOptions{Backup: backup})
				if len(written) > 0 {
					e.st.Record(ctx, b, e.set, written)
					if serr := e.st.Save(ctx); serr != nil {
						return errors.Join(err, serr)
					}
				}
				if err != nil {
					return errors.Errorf("committing batch: %w", err)
				}
				e.ui.Successf("wrote %d of %d files", len(written), len(b.Results))
			}

			if err := printSummary(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			return outcomeError(rep)
		},
	}

	cmd.Flags().BoolVar(&backup, "backup", false, "keep a .bak copy of every rewritten file")

	return cmd
}
