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
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/rewriterc/pkg/batch"
)

const yamlRules = `
mode: best-effort
conflict_policy: reject-on-overlap
workers: 2
verify_syntax: true
include: ["src/**/*.tsx"]
exclude: ["**/*.test.tsx"]
rules:
  - id: alert-danger-to-error
    priority: 10
    idempotent: true
    files: ["**/Challenge*.tsx"]
    pattern:
      source: 'variant="danger"'
    replace: 'variant="error"'
  - id: simple-loading
    pattern:
      kind: regex
      source: '<\?(?P<name>\w+)'
    replace: '<${name}'
  - id: drop-debug
    pattern:
      kind: literal
      source: 'debugger;'
      anchor: whole-line
    delete: true
    max_matches: 1
`

const jsonRules = `{
  "mode": "best-effort",
  "conflict_policy": "reject-on-overlap",
  "workers": 2,
  "verify_syntax": true,
  "include": ["src/**/*.tsx"],
  "exclude": ["**/*.test.tsx"],
  "rules": [
    {
      "id": "alert-danger-to-error",
      "priority": 10,
      "idempotent": true,
      "files": ["**/Challenge*.tsx"],
      "pattern": {"source": "variant=\"danger\""},
      "replace": "variant=\"error\""
    },
    {
      "id": "simple-loading",
      "pattern": {"kind": "regex", "source": "<\\?(?P<name>\\w+)"},
      "replace": "<${name}"
    },
    {
      "id": "drop-debug",
      "pattern": {"kind": "literal", "source": "debugger;", "anchor": "whole-line"},
      "delete": true,
      "max_matches": 1
    }
  ]
}`

const hclRules = `
mode            = "best-effort"
conflict_policy = "reject-on-overlap"
workers         = 2
verify_syntax   = true
include         = ["src/**/*.tsx"]
exclude         = ["**/*.test.tsx"]

rule "alert-danger-to-error" {
  priority   = 10
  idempotent = true
  files      = ["**/Challenge*.tsx"]
  replace    = "variant=\"error\""
  pattern {
    source = "variant=\"danger\""
  }
}

rule "simple-loading" {
  replace = "<$${name}"
  pattern {
    kind   = "regex"
    source = "<\\?(?P<name>\\w+)"
  }
}

rule "drop-debug" {
  delete      = true
  max_matches = 1
  pattern {
    kind   = "literal"
    source = "debugger;"
    anchor = "whole-line"
  }
}
`

const tomlRules = `
mode = "best-effort"
conflict_policy = "reject-on-overlap"
workers = 2
verify_syntax = true
include = ["src/**/*.tsx"]
exclude = ["**/*.test.tsx"]

[[rules]]
id = "alert-danger-to-error"
priority = 10
idempotent = true
files = ["**/Challenge*.tsx"]
replace = 'variant="error"'

[rules.pattern]
source = 'variant="danger"'

[[rules]]
id = "simple-loading"
replace = '<${name}'

[rules.pattern]
kind = "regex"
source = '<\?(?P<name>\w+)'

[[rules]]
id = "drop-debug"
delete = true
max_matches = 1

[rules.pattern]
kind = "literal"
source = "debugger;"
anchor = "whole-line"
`

func ptr[T any](v T) *T { return &v }

func wantRules() []RuleConfig {
	return []RuleConfig{
		{
			ID:         "alert-danger-to-error",
			Priority:   10,
			Idempotent: ptr(true),
			Files:      []string{"**/Challenge*.tsx"},
			Pattern:    PatternConfig{Kind: "literal", Source: `variant="danger"`, Anchor: "substring"},
			Replace:    ptr(`variant="error"`),
		},
		{
			ID:      "simple-loading",
			Pattern: PatternConfig{Kind: "regex", Source: `<\?(?P<name>\w+)`, Anchor: "substring"},
			Replace: ptr(`<${name}`),
		},
		{
			ID:         "drop-debug",
			Pattern:    PatternConfig{Kind: "literal", Source: "debugger;", Anchor: "whole-line"},
			Delete:     true,
			MaxMatches: 1,
		},
	}
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AllFormats(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{name: "yaml", filename: ".rewriterc.yaml", content: yamlRules},
		{name: "yml", filename: ".rewriterc.yml", content: yamlRules},
		{name: "json", filename: ".rewriterc.json", content: jsonRules},
		{name: "hcl", filename: ".rewriterc.hcl", content: hclRules},
		{name: "toml", filename: ".rewriterc.toml", content: tomlRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.filename, tt.content)
			cfg, err := Load(testContext(t), path)
			require.NoError(t, err)

			assert.Equal(t, path, cfg.Location())
			assert.Equal(t, "best-effort", cfg.Mode)
			assert.Equal(t, "reject-on-overlap", cfg.ConflictPolicy)
			assert.Equal(t, 2, cfg.Workers)
			assert.True(t, cfg.VerifySyntax)
			assert.Equal(t, []string{"src/**/*.tsx"}, cfg.Include)
			assert.Equal(t, []string{"**/*.test.tsx"}, cfg.Exclude)
			assert.Equal(t, wantRules(), cfg.Rules)
			assert.Equal(t, "3 rules, mode best-effort, policy reject-on-overlap", cfg.String())
		})
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{name: "yaml", filename: "r.yaml", content: "rules: []\nbogus: 1\n"},
		{name: "json", filename: "r.json", content: `{"rules": [], "bogus": 1}`},
		{name: "hcl", filename: "r.hcl", content: "bogus = 1\n"},
		{name: "toml", filename: "r.toml", content: "bogus = 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(testContext(t), writeFile(t, tt.filename, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parsing config")
		})
	}
}

func TestJSONParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "empty_document", content: "  \n", want: "document is empty"},
		{name: "syntax_error_has_position", content: "{\n  \"mode\": \"atomic\",\n  \"workers\": 2,\n}", want: "line 4 column"},
		{name: "type_error_has_position", content: "{\n  \"workers\": \"two\"\n}", want: "line 2 column"},
		{name: "trailing_object", content: `{"rules": []} {"rules": []}`, want: "unexpected data after the config object at line 1 column 15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&JSONParser{}).Parse(testContext(t), []byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(testContext(t), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})
	t.Run("unknown_extension", func(t *testing.T) {
		_, err := Load(testContext(t), writeFile(t, "rules.ini", "x=1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no parser found")
	})
	t.Run("empty_yaml", func(t *testing.T) {
		_, err := Load(testContext(t), writeFile(t, "rules.yaml", ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "document is empty")
	})
	t.Run("invalid_rules", func(t *testing.T) {
		_, err := Load(testContext(t), writeFile(t, "rules.yaml", "rules:\n  - id: x\n    pattern: {kind: glob, source: a}\n    replace: b\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rules[0].pattern.kind")
	})
}

func TestHCL_EnvVariable(t *testing.T) {
	t.Setenv("REWRITERC_TEST_VARIANT", "error")
	path := writeFile(t, "r.hcl", `
rule "alert" {
  replace = "variant=\"${env.REWRITERC_TEST_VARIANT}\""
  pattern {
    source = "variant=\"danger\""
  }
}
`)
	cfg, err := Load(testContext(t), path)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, `variant="error"`, *cfg.Rules[0].Replace)
}

func validConfig() *Config {
	return &Config{Rules: []RuleConfig{{
		ID:      "r",
		Pattern: PatternConfig{Source: "a"},
		Replace: ptr("b"),
	}}}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr []string
	}{
		{name: "valid_fills_defaults", mutate: func(*Config) {}},
		{name: "unknown_mode", mutate: func(c *Config) { c.Mode = "yolo" }, wantErr: []string{"mode: unknown mode"}},
		{name: "unknown_policy", mutate: func(c *Config) { c.ConflictPolicy = "last" }, wantErr: []string{"conflict_policy: "}},
		{name: "negative_workers", mutate: func(c *Config) { c.Workers = -1 }, wantErr: []string{"workers: must not be negative"}},
		{name: "bad_include_glob", mutate: func(c *Config) { c.Include = []string{"src/[a"} }, wantErr: []string{"include[0]: invalid glob"}},
		{name: "bad_exclude_glob", mutate: func(c *Config) { c.Exclude = []string{"ok/**", "["} }, wantErr: []string{"exclude[1]: invalid glob"}},
		{name: "no_rules", mutate: func(c *Config) { c.Rules = nil }, wantErr: []string{"rules: at least one rule is required"}},
		{name: "missing_id", mutate: func(c *Config) { c.Rules[0].ID = "  " }, wantErr: []string{"rules[0].id: is required"}},
		{
			name:    "duplicate_id",
			mutate:  func(c *Config) { c.Rules = append(c.Rules, c.Rules[0]) },
			wantErr: []string{`rules[1].id: duplicate id "r" (first used by rules[0])`},
		},
		{name: "unknown_kind", mutate: func(c *Config) { c.Rules[0].Pattern.Kind = "glob" }, wantErr: []string{"rules[0].pattern.kind: unknown pattern kind"}},
		{name: "unknown_anchor", mutate: func(c *Config) { c.Rules[0].Pattern.Anchor = "file" }, wantErr: []string{"rules[0].pattern.anchor: unknown anchor"}},
		{name: "missing_source", mutate: func(c *Config) { c.Rules[0].Pattern.Source = "" }, wantErr: []string{"rules[0].pattern.source: is required"}},
		{name: "replace_and_delete", mutate: func(c *Config) { c.Rules[0].Delete = true }, wantErr: []string{"rules[0].replace: cannot be combined with delete"}},
		{name: "no_replacement", mutate: func(c *Config) { c.Rules[0].Replace = nil }, wantErr: []string{"rules[0].replace: is required unless delete is true"}},
		{name: "positional_template", mutate: func(c *Config) { c.Rules[0].Replace = ptr("$1") }, wantErr: []string{"rules[0].replace: ", "positional reference"}},
		{name: "bad_file_glob", mutate: func(c *Config) { c.Rules[0].Files = []string{"**/*.tsx", "{a"} }, wantErr: []string{"rules[0].files[1]: invalid glob"}},
		{name: "negative_max_matches", mutate: func(c *Config) { c.Rules[0].MaxMatches = -2 }, wantErr: []string{"rules[0].max_matches: must not be negative"}},
		{
			name:    "capped_idempotent",
			mutate:  func(c *Config) { c.Rules[0].MaxMatches = 1; c.Rules[0].Idempotent = ptr(true) },
			wantErr: []string{"rules[0].idempotent: "},
		},
		{
			name: "every_problem_reported",
			mutate: func(c *Config) {
				c.Mode = "yolo"
				c.Rules[0].Pattern.Source = ""
			},
			wantErr: []string{"mode: ", "rules[0].pattern.source: "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				assert.Equal(t, "atomic", cfg.Mode)
				assert.Equal(t, "first-match-wins", cfg.ConflictPolicy)
				assert.Equal(t, "literal", cfg.Rules[0].Pattern.Kind)
				assert.Equal(t, "substring", cfg.Rules[0].Pattern.Anchor)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_RuleSet(t *testing.T) {
	cfg, err := Load(testContext(t), writeFile(t, ".rewriterc.yaml", yamlRules))
	require.NoError(t, err)

	set, err := cfg.RuleSet()
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "reject-on-overlap", string(set.Policy()))

	alert, ok := set.Rule("alert-danger-to-error")
	require.True(t, ok)
	assert.True(t, alert.Idempotent)
	assert.Equal(t, 10, alert.Priority)

	loading, ok := set.Rule("simple-loading")
	require.True(t, ok)
	assert.True(t, loading.Idempotent, "uncapped rules default to idempotent")

	drop, ok := set.Rule("drop-debug")
	require.True(t, ok)
	assert.False(t, drop.Idempotent, "capped rules default to run-once")

	opts := cfg.BatchOptions()
	assert.Equal(t, batch.ModeBestEffort, opts.Mode)
	assert.Equal(t, 2, opts.Workers)

	b := batch.Run(testContext(t), []batch.File{
		{ID: "src/Challenge.tsx", Content: `<Alert variant="danger">Error</Alert><?SimpleLoading />`},
	}, set, opts)
	require.Len(t, b.Results, 1)
	assert.Equal(t, `<Alert variant="error">Error</Alert><SimpleLoading />`, b.Results[0].Final)
	assert.Equal(t, []string{"drop-debug"}, b.Results[0].Unmatched)
}

func TestConfig_RuleSetRejectsUnknownCapture(t *testing.T) {
	cfg := validConfig()
	cfg.Rules[0].Pattern = PatternConfig{Kind: "regex", Source: `(?P<tag>\w+)`}
	cfg.Rules[0].Replace = ptr("${name}")
	require.NoError(t, cfg.Validate())

	_, err := cfg.RuleSet()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `capture "name"`)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	_, err := Find(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rewriterc.toml"), []byte(tomlRules), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".rewriterc.json"), []byte(jsonRules), 0o644))

	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".rewriterc.json"), path, "earlier default names win")
}

func TestGetParser(t *testing.T) {
	tests := []struct {
		filename string
		want     Parser
	}{
		{filename: ".rewriterc.yaml", want: &YAMLParser{}},
		{filename: "rules.yml", want: &YAMLParser{}},
		{filename: "rules.JSON", want: &JSONParser{}},
		{filename: "rules.hcl", want: &HCLParser{}},
		{filename: "rules.toml", want: &TOMLParser{}},
		{filename: "rules.ini", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := GetParser(tt.filename)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}
