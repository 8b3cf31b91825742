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
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ buildInfo describes the running binary
type buildInfo struct {
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
	Built    string `json:"built,omitempty"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

var currentBuild = sync.OnceValue(func() buildInfo {
	bi := buildInfo{
		Version:  "dev",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	mod, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if v := mod.Main.Version; v != "" && v != "(devel)" {
		bi.Version = v
	}
	vcs := make(map[string]string, len(mod.Settings))
	for _, s := range mod.Settings {
		vcs[s.Key] = s.Value
	}
	bi.Revision = vcs["vcs.revision"]
	bi.Built = vcs["vcs.time"]
	bi.Dirty = vcs["vcs.modified"] == "true"
	return bi
})

func (bi buildInfo) rows() pterm.TableData {
	revision := bi.Revision
	if revision == "" {
		revision = "unknown"
	} else if bi.Dirty {
		revision += " (modified)"
	}
	return pterm.TableData{
		{"version", bi.Version},
		{"revision", revision},
		{"built", bi.Built},
		{"go", bi.Go},
		{"platform", bi.Platform},
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bi := currentBuild()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(bi)
			}
			table, err := pterm.DefaultTable.WithData(bi.rows()).Srender()
			if err != nil {
				return errors.Errorf("rendering version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🚀 rewriterc\n%s\n", table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print version information as JSON")
	return cmd
}
