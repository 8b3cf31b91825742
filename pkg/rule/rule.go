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

package rule

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/walteh/rewriterc/pkg/pattern"
	"gitlab.com/tozd/go/errors"
)

// 📜 Rule pairs a pattern with a replacement policy.
//
// Rules are immutable once added to a RuleSet and are shared by every
// worker of a batch.
type Rule struct {
	ID          string
	Description string
	Pattern     pattern.Pattern
	Replace     Replacer

	// Priority breaks ties between candidates starting at the same offset;
	// lower values win.
	Priority int

	// Idempotent asserts that applying the rule to its own output changes
	// nothing. Rules that are not idempotent assume the state before the rule
	// ran and must only run once.
	Idempotent bool

	// Files limits the rule to file ids matching any of these globs.
	Files []string

	// Requires and Excludes are literal guards evaluated on the original buffer.
	Requires string
	Excludes string

	// MaxMatches caps accepted matches per file; zero means unlimited.
	MaxMatches int
}

// Validate checks the rule in isolation
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("rule id is empty")
	}
	if r.Pattern == nil {
		return errors.Errorf("rule %q: pattern is nil", r.ID)
	}
	if r.Replace == nil {
		return errors.Errorf("rule %q: replacer is nil", r.ID)
	}
	if r.MaxMatches < 0 {
		return errors.Errorf("rule %q: max matches must not be negative", r.ID)
	}
	if r.Idempotent && r.MaxMatches > 0 {
		return errors.Errorf("rule %q: a capped rule cannot be idempotent; unapplied matches would remain", r.ID)
	}
	for _, glob := range r.Files {
		if !doublestar.ValidatePattern(glob) {
			return errors.Errorf("rule %q: invalid file glob %q", r.ID, glob)
		}
	}

	// a broken pattern is reported per file, so only check references when
	// the pattern compiled
	if t, ok := r.Replace.(*Template); ok && pattern.Check(r.Pattern) == nil {
		known := r.Pattern.Captures()
		for _, name := range t.Names() {
			if !slices.Contains(known, name) {
				return errors.Errorf("rule %q: replacement references capture %q which the %s pattern does not define", r.ID, name, r.Pattern.Kind())
			}
		}
	}
	return nil
}

// MatchesFile reports whether fileID passes the rule's file filter
func (r *Rule) MatchesFile(fileID string) bool {
	if len(r.Files) == 0 {
		return true
	}
	// file ids may come from any host; both separators count
	id := strings.ReplaceAll(fileID, `\`, "/")
	for _, glob := range r.Files {
		if ok, _ := doublestar.Match(glob, id); ok {
			return true
		}
	}
	return false
}

// Guarded reports whether the rule's literal guards hold for buf
func (r *Rule) Guarded(buf string) bool {
	if r.Requires != "" && !strings.Contains(buf, r.Requires) {
		return false
	}
	if r.Excludes != "" && strings.Contains(buf, r.Excludes) {
		return false
	}
	return true
}

// AppliesTo reports whether the rule participates for the given file
func (r *Rule) AppliesTo(fileID, buf string) bool {
	return r.MatchesFile(fileID) && r.Guarded(buf)
}

// Find returns every match of the rule's pattern in buf, tagged with the
// rule id. A malformed pattern returns a *pattern.PatternError naming the rule.
func (r *Rule) Find(buf string) ([]pattern.Match, error) {
	seq, err := r.Pattern.Find(buf)
	if err != nil {
		if perr, ok := pattern.AsPatternError(err); ok {
			return nil, perr.WithRule(r.ID)
		}
		return nil, errors.Errorf("rule %q: finding matches: %w", r.ID, err)
	}
	var out []pattern.Match
	for m := range seq {
		m.RuleID = r.ID
		out = append(out, m)
	}
	return out, nil
}

// Apply returns the replacement text for one match
func (r *Rule) Apply(buf string, m pattern.Match) (string, error) {
	s, err := r.Replace.Replace(buf, m)
	if err != nil {
		return "", errors.Errorf("rule %q: replacing %s: %w", r.ID, m.Span, err)
	}
	return s, nil
}

// SelfCheck applies the rule alone to buf in a single pass and reports
// whether the output yields no further match. A rule that does not
// participate for buf trivially passes; a broken pattern fails.
func (r *Rule) SelfCheck(buf string) bool {
	out, err := r.applyAlone(buf)
	if err != nil {
		return false
	}
	if !r.Guarded(out) {
		return true
	}
	again, err := r.Find(out)
	return err == nil && len(again) == 0
}

func (r *Rule) applyAlone(buf string) (string, error) {
	if !r.Guarded(buf) {
		return buf, nil
	}
	matches, err := r.Find(buf)
	if err != nil {
		return "", err
	}
	if r.MaxMatches > 0 && len(matches) > r.MaxMatches {
		matches = matches[:r.MaxMatches]
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		rep, err := r.Apply(buf, m)
		if err != nil {
			return "", err
		}
		b.WriteString(buf[last:m.Span.Start])
		b.WriteString(rep)
		last = m.Span.End
	}
	b.WriteString(buf[last:])
	return b.String(), nil
}
