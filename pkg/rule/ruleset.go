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
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/walteh/rewriterc/pkg/pattern"
	"gitlab.com/tozd/go/errors"
)

// ⚖️ ConflictPolicy decides what happens when two candidates overlap
type ConflictPolicy string

const (
	// FirstMatchWins keeps the earliest candidate and skips later overlapping ones.
	FirstMatchWins ConflictPolicy = "first-match-wins"
	// RejectOnOverlap fails resolution with a *ConflictError.
	RejectOnOverlap ConflictPolicy = "reject-on-overlap"
)

// ParsePolicy converts a config string into a ConflictPolicy. The empty
// string is FirstMatchWins.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FirstMatchWins:
		return FirstMatchWins, nil
	case RejectOnOverlap:
		return RejectOnOverlap, nil
	default:
		return "", errors.Errorf("unknown conflict policy %q (want first-match-wins or reject-on-overlap)", s)
	}
}

// 💥 ConflictError reports two rules claiming overlapping text
type ConflictError struct {
	FileID string
	// First is the rule whose match was accepted first.
	First  string
	Second string
	// Span is the overlapping region of the two matches.
	Span pattern.Span
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("file %q: rules %q and %q both claim %s", e.FileID, e.First, e.Second, e.Span)
}

// AsConflictError unwraps err into a *ConflictError
func AsConflictError(err error) (*ConflictError, bool) {
	var cerr *ConflictError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

// 📚 RuleSet is an immutable collection of rules with a conflict policy
type RuleSet struct {
	rules  []*Rule
	byID   map[string]*Rule
	policy ConflictPolicy
}

// NewSet validates the rules and builds a set. Rule ids must be unique.
func NewSet(policy ConflictPolicy, rules ...*Rule) (*RuleSet, error) {
	if policy == "" {
		policy = FirstMatchWins
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	s := &RuleSet{
		rules:  make([]*Rule, 0, len(rules)),
		byID:   make(map[string]*Rule, len(rules)),
		policy: policy,
	}
	for i, r := range rules {
		if r == nil {
			return nil, errors.Errorf("rule %d is nil", i)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byID[r.ID]; dup {
			return nil, errors.Errorf("duplicate rule id %q", r.ID)
		}
		s.byID[r.ID] = r
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// Rules returns the rules in listing order
func (s *RuleSet) Rules() []*Rule {
	return slices.Clone(s.rules)
}

func (s *RuleSet) Rule(id string) (*Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *RuleSet) Policy() ConflictPolicy {
	return s.policy
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Without returns a set sharing s's rules and policy minus the given ids.
// Unknown ids are ignored; s itself is returned when nothing is removed.
func (s *RuleSet) Without(ids ...string) *RuleSet {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return s
	}
	out := &RuleSet{
		rules:  make([]*Rule, 0, len(s.rules)-len(drop)),
		byID:   make(map[string]*Rule, len(s.rules)-len(drop)),
		policy: s.policy,
	}
	for _, r := range s.rules {
		if drop[r.ID] {
			continue
		}
		out.rules = append(out.rules, r)
		out.byID[r.ID] = r
	}
	return out
}

// 🧾 Resolution is the reconciled outcome of matching a set against one buffer
type Resolution struct {
	FileID string
	// Matches are pairwise disjoint and ordered by ascending start.
	Matches []pattern.Match
	// Participating lists, sorted, the ids of rules evaluated for the file.
	Participating []string
	// PatternErrors holds one error per rule disqualified by a broken pattern.
	PatternErrors []*pattern.PatternError
}

// Unmatched lists participating rules with no accepted match. Rules
// disqualified by a pattern error are reported there instead.
func (r *Resolution) Unmatched() []string {
	hit := make(map[string]bool, len(r.Matches))
	for _, m := range r.Matches {
		hit[m.RuleID] = true
	}
	for _, perr := range r.PatternErrors {
		hit[perr.RuleID] = true
	}
	var out []string
	for _, id := range r.Participating {
		if !hit[id] {
			out = append(out, id)
		}
	}
	return out
}

// Resolve matches every participating rule against the original buffer and
// reconciles the candidates into a disjoint set of accepted matches.
//
// Candidates are ordered by (start, priority, rule id) so the outcome does
// not depend on listing order. Under RejectOnOverlap the first intersection
// returns a *ConflictError together with a Resolution that carries no matches.
func (s *RuleSet) Resolve(fileID, buf string) (*Resolution, error) {
	res := &Resolution{FileID: fileID}

	var candidates []pattern.Match
	for _, r := range s.rules {
		if !r.AppliesTo(fileID, buf) {
			continue
		}
		res.Participating = append(res.Participating, r.ID)
		found, err := r.Find(buf)
		if err != nil {
			perr, ok := pattern.AsPatternError(err)
			if !ok {
				return nil, err
			}
			res.PatternErrors = append(res.PatternErrors, perr)
			continue
		}
		candidates = append(candidates, found...)
	}
	slices.Sort(res.Participating)

	slices.SortStableFunc(candidates, func(a, b pattern.Match) int {
		return cmp.Or(
			cmp.Compare(a.Span.Start, b.Span.Start),
			cmp.Compare(s.byID[a.RuleID].Priority, s.byID[b.RuleID].Priority),
			strings.Compare(a.RuleID, b.RuleID),
			cmp.Compare(a.Span.End, b.Span.End),
		)
	})

	counts := make(map[string]int)
	accepted := make([]pattern.Match, 0, len(candidates))
	for _, c := range candidates {
		r := s.byID[c.RuleID]
		if r.MaxMatches > 0 && counts[r.ID] >= r.MaxMatches {
			continue
		}
		// accepted spans are disjoint and ascending, so only the last one can
		// reach past c.Span.Start
		if n := len(accepted); n > 0 && accepted[n-1].Span.Overlaps(c.Span) {
			if s.policy == RejectOnOverlap {
				prev := accepted[n-1]
				return res, &ConflictError{
					FileID: fileID,
					First:  prev.RuleID,
					Second: c.RuleID,
					Span:   prev.Span.Intersect(c.Span),
				}
			}
			continue
		}
		counts[r.ID]++
		accepted = append(accepted, c)
	}
	res.Matches = accepted
	return res, nil
}
