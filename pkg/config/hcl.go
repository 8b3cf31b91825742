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

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files.
//
// Rules are labelled blocks:
//
//	rule "alert-danger-to-error" {
//	  replace = "variant=\"error\""
//	  pattern {
//	    kind   = "literal"
//	    source = "variant=\"danger\""
//	  }
//	}
//
// HCL interpolates "${...}" itself, so replacement templates escape it as
// "$${name}". The variable env exposes the process environment.
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

type hclPattern struct {
	Kind            string `hcl:"kind,optional"`
	Source          string `hcl:"source"`
	CaseInsensitive bool   `hcl:"case_insensitive,optional"`
	Anchor          string `hcl:"anchor,optional"`
	LooseWhitespace bool   `hcl:"loose_whitespace,optional"`
	DotAll          bool   `hcl:"dot_all,optional"`
}

type hclRule struct {
	ID          string     `hcl:"id,label"`
	Description string     `hcl:"description,optional"`
	Priority    int        `hcl:"priority,optional"`
	Idempotent  *bool      `hcl:"idempotent,optional"`
	Files       []string   `hcl:"files,optional"`
	Pattern     hclPattern `hcl:"pattern,block"`
	Replace     *string    `hcl:"replace,optional"`
	Delete      bool       `hcl:"delete,optional"`
	Requires    string     `hcl:"requires,optional"`
	Excludes    string     `hcl:"excludes,optional"`
	MaxMatches  int        `hcl:"max_matches,optional"`
}

type hclConfig struct {
	Mode           string    `hcl:"mode,optional"`
	ConflictPolicy string    `hcl:"conflict_policy,optional"`
	Workers        int       `hcl:"workers,optional"`
	VerifySyntax   bool      `hcl:"verify_syntax,optional"`
	Include        []string  `hcl:"include,optional"`
	Exclude        []string  `hcl:"exclude,optional"`
	Rules          []hclRule `hcl:"rule,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "rewriterc.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{
		Mode:           hclCfg.Mode,
		ConflictPolicy: hclCfg.ConflictPolicy,
		Workers:        hclCfg.Workers,
		VerifySyntax:   hclCfg.VerifySyntax,
		Include:        hclCfg.Include,
		Exclude:        hclCfg.Exclude,
	}
	for _, r := range hclCfg.Rules {
		cfg.Rules = append(cfg.Rules, RuleConfig{
			ID:          r.ID,
			Description: r.Description,
			Priority:    r.Priority,
			Idempotent:  r.Idempotent,
			Files:       r.Files,
			Pattern: PatternConfig{
				Kind:            r.Pattern.Kind,
				Source:          r.Pattern.Source,
				CaseInsensitive: r.Pattern.CaseInsensitive,
				Anchor:          r.Pattern.Anchor,
				LooseWhitespace: r.Pattern.LooseWhitespace,
				DotAll:          r.Pattern.DotAll,
			},
			Replace:    r.Replace,
			Delete:     r.Delete,
			Requires:   r.Requires,
			Excludes:   r.Excludes,
			MaxMatches: r.MaxMatches,
		})
	}

	return cfg, nil
}

func envObject() cty.Value {
	vals := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
