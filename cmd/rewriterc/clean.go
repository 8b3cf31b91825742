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
	"github.com/walteh/rewriterc/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// newCleanCmd creates the clean command
func newCleanCmd(opts *rootOpts) *cobra.Command {
	var lock bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove backups left by apply --backup",
		Long: `Clean removes every .bak file under the root.
It will:
1. Remove backups, including those whose original is gone
2. With --lock, empty .rewriterc.lock so run-once rules may fire again`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextWithCommand(cmd.Context(), "clean")

			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			ids, err := e.ws.Backups(ctx)
			if err != nil {
				return err
			}

			e.ui.Header("cleaning backups")
			for _, id := range ids {
				if err := e.ws.RemoveBackup(ctx, id); err != nil {
					e.ui.LogFileOperation(ctx, log.FileOperation{Path: id, Status: "failed", IsFailed: true})
					return errors.Errorf("cleaning %q: %w", id, err)
				}
				e.ui.LogFileOperation(ctx, log.FileOperation{Path: id, Status: "backup removed", IsWritten: true})
			}

			if lock {
				e.st.Reset()
				if err := e.st.Save(ctx); err != nil {
					return err
				}
				e.ui.Info("lock file reset")
			}

			e.ui.Successf("removed %d backups", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVar(&lock, "lock", false, "also reset the run-once ledger")

	return cmd
}

// newRestoreCmd creates the restore command
func newRestoreCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Put every backup back in place",
		Long: `Restore copies each .bak file over its original and removes the backup.
Restored files are forgotten by .rewriterc.lock, so their run-once rules apply
again on the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextWithCommand(cmd.Context(), "restore")

			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			ids, err := e.ws.Backups(ctx)
			if err != nil {
				return err
			}

			e.ui.Header("restoring backups")
			var restored []string
			var errs []error
			for _, id := range ids {
				if err := e.ws.RestoreFile(ctx, id); err != nil {
					e.ui.LogFileOperation(ctx, log.FileOperation{Path: id, Status: "failed", IsFailed: true})
					errs = append(errs, errors.Errorf("restoring %q: %w", id, err))
					continue
				}
				restored = append(restored, id)
				e.ui.LogFileOperation(ctx, log.FileOperation{Path: id, Status: "restored", IsWritten: true})
			}

			if len(restored) > 0 {
				e.st.Forget(restored...)
				if err := e.st.Save(ctx); err != nil {
					errs = append(errs, err)
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			e.ui.Successf("restored %d files", len(restored))
			return nil
		},
	}

	return cmd
}
