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
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

// 🏗️ RuleSet builds the engine rule set described by a validated config.
//
// Malformed pattern sources are not rejected here. They surface per file as
// pattern errors, like any other rule set.
func (cfg *Config) RuleSet() (*rule.RuleSet, error) {
	policy, err := rule.ParsePolicy(cfg.ConflictPolicy)
	if err != nil {
		return nil, errors.Errorf("conflict_policy: %w", err)
	}

	rules := make([]*rule.Rule, 0, len(cfg.Rules))
	for i := range cfg.Rules {
		r, err := cfg.Rules[i].Rule()
		if err != nil {
			return nil, errors.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}

	set, err := rule.NewSet(policy, rules...)
	if err != nil {
		return nil, errors.Errorf("building rule set: %w", err)
	}
	return set, nil
}

// BatchOptions returns the orchestrator options of the config
func (cfg *Config) BatchOptions() batch.Options {
	return batch.Options{
		Mode:    batch.Mode(cfg.Mode),
		Workers: cfg.Workers,
	}
}

// Rule converts one rule entry into an engine rule
func (rc *RuleConfig) Rule() (*rule.Rule, error) {
	kind, err := pattern.ParseKind(rc.Pattern.Kind)
	if err != nil {
		return nil, errors.Errorf("pattern.kind: %w", err)
	}
	anchor, err := pattern.ParseAnchor(rc.Pattern.Anchor)
	if err != nil {
		return nil, errors.Errorf("pattern.anchor: %w", err)
	}

	var repl rule.Replacer
	switch {
	case rc.Delete:
		repl = rule.Delete()
	case rc.Replace != nil:
		tmpl, err := rule.NewTemplate(*rc.Replace)
		if err != nil {
			return nil, errors.Errorf("replace: %w", err)
		}
		repl = tmpl
	default:
		return nil, errors.New("replace: is required unless delete is true")
	}

	idempotent := rc.MaxMatches == 0
	if rc.Idempotent != nil {
		idempotent = *rc.Idempotent
	}

	return &rule.Rule{
		ID:          rc.ID,
		Description: rc.Description,
		Pattern: pattern.New(kind, rc.Pattern.Source, pattern.Options{
			CaseInsensitive: rc.Pattern.CaseInsensitive,
			Anchor:          anchor,
			LooseWhitespace: rc.Pattern.LooseWhitespace,
			DotAll:          rc.Pattern.DotAll,
		}),
		Replace:    repl,
		Priority:   rc.Priority,
		Idempotent: idempotent,
		Files:      rc.Files,
		Requires:   rc.Requires,
		Excludes:   rc.Excludes,
		MaxMatches: rc.MaxMatches,
	}, nil
}
