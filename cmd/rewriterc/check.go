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
)

// newCheckCmd creates the check command
func newCheckCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run the rules and report what would change",
		Long: `Check runs every rule over the selected files without writing anything.
It will:
1. Load the rule file and discover files
2. Rewrite every file in memory
3. Verify idempotency, edit disjointness and (optionally) syntax
4. Print a summary and exit 0 (success), 2 (warnings) or 1 (failure)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextWithCommand(cmd.Context(), "check")

			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			e.ui.Header("checking " + e.cfg.String())
			b, rep, err := e.run(ctx)
			if err != nil {
				return err
			}

			e.printFiles(ctx, b)
			e.printFindings(b, rep)
			if err := printSummary(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			return outcomeError(rep)
		},
	}

	return cmd
}
