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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse decodes the config from bytes without validating it
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// DefaultNames are the rule file names looked up by Find, in order
var DefaultNames = []string{
	".rewriterc.yaml",
	".rewriterc.yml",
	".rewriterc.json",
	".rewriterc.hcl",
	".rewriterc.toml",
}

// 🧩 PatternConfig describes the pattern of one rule
type PatternConfig struct {
	Kind            string `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty"`
	Source          string `json:"source" yaml:"source" toml:"source"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" yaml:"case_insensitive,omitempty" toml:"case_insensitive,omitempty"`
	Anchor          string `json:"anchor,omitempty" yaml:"anchor,omitempty" toml:"anchor,omitempty"`
	LooseWhitespace bool   `json:"loose_whitespace,omitempty" yaml:"loose_whitespace,omitempty" toml:"loose_whitespace,omitempty"`
	DotAll          bool   `json:"dot_all,omitempty" yaml:"dot_all,omitempty" toml:"dot_all,omitempty"`
}

// 📜 RuleConfig is one rule as written in a rule file
type RuleConfig struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Priority    int    `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
	// Idempotent defaults to true for uncapped rules and false for capped ones.
	Idempotent *bool         `json:"idempotent,omitempty" yaml:"idempotent,omitempty" toml:"idempotent,omitempty"`
	Files      []string      `json:"files,omitempty" yaml:"files,omitempty" toml:"files,omitempty"`
	Pattern    PatternConfig `json:"pattern" yaml:"pattern" toml:"pattern"`
	// Replace is a ${name} template. An explicit empty string replaces with nothing.
	Replace    *string `json:"replace,omitempty" yaml:"replace,omitempty" toml:"replace,omitempty"`
	Delete     bool    `json:"delete,omitempty" yaml:"delete,omitempty" toml:"delete,omitempty"`
	Requires   string  `json:"requires,omitempty" yaml:"requires,omitempty" toml:"requires,omitempty"`
	Excludes   string  `json:"excludes,omitempty" yaml:"excludes,omitempty" toml:"excludes,omitempty"`
	MaxMatches int     `json:"max_matches,omitempty" yaml:"max_matches,omitempty" toml:"max_matches,omitempty"`
}

// 📚 Config is a complete rule file
type Config struct {
	Mode           string       `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`
	ConflictPolicy string       `json:"conflict_policy,omitempty" yaml:"conflict_policy,omitempty" toml:"conflict_policy,omitempty"`
	Workers        int          `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty"`
	VerifySyntax   bool         `json:"verify_syntax,omitempty" yaml:"verify_syntax,omitempty" toml:"verify_syntax,omitempty"`
	Include        []string     `json:"include,omitempty" yaml:"include,omitempty" toml:"include,omitempty"`
	Exclude        []string     `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	Rules          []RuleConfig `json:"rules" yaml:"rules" toml:"rules"`

	location string
}

// Location is the path the config was loaded from, if any
func (cfg *Config) Location() string {
	return cfg.location
}

// 🎯 Load reads, parses and validates a rule file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Int("rules", len(cfg.Rules)).Str("mode", cfg.Mode).Msg("configuration loaded")
	return cfg, nil
}

// 🔍 Find returns the first DefaultNames entry present in dir
func Find(dir string) (string, error) {
	for _, name := range DefaultNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("no rule file found in %s (looked for %s)", dir, strings.Join(DefaultNames, ", "))
}

// 🚧 FieldError is a validation failure at a field path like rules[2].pattern.kind
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// 🔍 Validate checks the config, fills defaults and canonicalizes enum
// values. Every problem found is reported, each with its field path.
func (cfg *Config) Validate() error {
	var errs []error
	fail := func(path string, err error) {
		errs = append(errs, &FieldError{Path: path, Err: err})
	}

	mode, err := batch.ParseMode(cfg.Mode)
	if err != nil {
		fail("mode", err)
	}
	cfg.Mode = string(mode)

	policy, err := rule.ParsePolicy(cfg.ConflictPolicy)
	if err != nil {
		fail("conflict_policy", err)
	}
	cfg.ConflictPolicy = string(policy)

	if cfg.Workers < 0 {
		fail("workers", errors.New("must not be negative"))
	}

	for i, glob := range cfg.Include {
		if !doublestar.ValidatePattern(glob) {
			fail(fmt.Sprintf("include[%d]", i), errors.Errorf("invalid glob %q", glob))
		}
	}
	for i, glob := range cfg.Exclude {
		if !doublestar.ValidatePattern(glob) {
			fail(fmt.Sprintf("exclude[%d]", i), errors.Errorf("invalid glob %q", glob))
		}
	}

	if len(cfg.Rules) == 0 {
		fail("rules", errors.New("at least one rule is required"))
	}

	seen := make(map[string]int, len(cfg.Rules))
	for i := range cfg.Rules {
		rc := &cfg.Rules[i]
		at := func(field string) string { return fmt.Sprintf("rules[%d].%s", i, field) }

		rc.ID = strings.TrimSpace(rc.ID)
		if rc.ID == "" {
			fail(at("id"), errors.New("is required"))
		} else if j, dup := seen[rc.ID]; dup {
			fail(at("id"), errors.Errorf("duplicate id %q (first used by rules[%d])", rc.ID, j))
		} else {
			seen[rc.ID] = i
		}

		if rc.Pattern.Kind == "" {
			rc.Pattern.Kind = string(pattern.KindLiteral)
		}
		kind, err := pattern.ParseKind(rc.Pattern.Kind)
		if err != nil {
			fail(at("pattern.kind"), err)
		}
		rc.Pattern.Kind = string(kind)

		anchor, err := pattern.ParseAnchor(rc.Pattern.Anchor)
		if err != nil {
			fail(at("pattern.anchor"), err)
		}
		rc.Pattern.Anchor = string(anchor)

		if rc.Pattern.Source == "" {
			fail(at("pattern.source"), errors.New("is required"))
		}

		switch {
		case rc.Delete && rc.Replace != nil:
			fail(at("replace"), errors.New("cannot be combined with delete"))
		case !rc.Delete && rc.Replace == nil:
			fail(at("replace"), errors.New("is required unless delete is true"))
		case rc.Replace != nil:
			if _, err := rule.NewTemplate(*rc.Replace); err != nil {
				fail(at("replace"), err)
			}
		}

		for j, glob := range rc.Files {
			if !doublestar.ValidatePattern(glob) {
				fail(fmt.Sprintf("rules[%d].files[%d]", i, j), errors.Errorf("invalid glob %q", glob))
			}
		}

		if rc.MaxMatches < 0 {
			fail(at("max_matches"), errors.New("must not be negative"))
		}
		if rc.MaxMatches > 0 && rc.Idempotent != nil && *rc.Idempotent {
			fail(at("idempotent"), errors.New("a rule with max_matches cannot be idempotent"))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// 📝 String returns a short description of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%d rules, mode %s, policy %s", len(cfg.Rules), cfg.Mode, cfg.ConflictPolicy)
}
