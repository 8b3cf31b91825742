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
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

// newRulesCmd creates the rules command
func newRulesCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules of the rule file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts)
			if err != nil {
				return err
			}

			out, err := rulesTable(e.set.Rules())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	return cmd
}

// rulesTable renders rules in the order the set evaluates ties: priority, then id
func rulesTable(rules []*rule.Rule) (string, error) {
	data := pterm.TableData{{"id", "kind", "priority", "idempotent", "files", "pattern", "description"}}
	for _, r := range sortedRules(rules) {
		idem := "yes"
		if !r.Idempotent {
			idem = "run-once"
		}
		files := "*"
		if len(r.Files) > 0 {
			files = strings.Join(r.Files, ", ")
		}
		data = append(data, []string{
			r.ID,
			string(r.Pattern.Kind()),
			strconv.Itoa(r.Priority),
			idem,
			files,
			truncate(r.Pattern.Source(), 40),
			r.Description,
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", errors.Errorf("rendering rules: %w", err)
	}
	return out, nil
}

func sortedRules(rules []*rule.Rule) []*rule.Rule {
	return slices.SortedStableFunc(slices.Values(rules), func(a, b *rule.Rule) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), strings.Compare(a.ID, b.ID))
	})
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
