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

// Package rewrite splices the accepted matches of a rule set into a buffer.
package rewrite

import (
	"strings"

	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

// 📝 ChangeRecord is one applied substitution, in original buffer coordinates
type ChangeRecord struct {
	RuleID string
	FileID string
	Span   pattern.Span
	Before string
	After  string
}

// 📄 Result is the outcome of rewriting one buffer
type Result struct {
	FileID   string
	Original string
	Final    string
	// Changes are ordered by ascending span start.
	Changes []ChangeRecord
	// Participating lists, sorted, the rules evaluated for the file. It is
	// set even when the rewrite fails.
	Participating []string
	// Unmatched lists participating rules with zero accepted matches.
	Unmatched []string
	// PatternErrors holds rules disqualified by a malformed pattern.
	PatternErrors []*pattern.PatternError
}

// Changed reports whether the final buffer differs from the original
func (r *Result) Changed() bool {
	return r.Final != r.Original
}

// 🛠️ Rewriter applies a RuleSet to single buffers
type Rewriter struct {
	set *rule.RuleSet
}

func New(set *rule.RuleSet) *Rewriter {
	return &Rewriter{set: set}
}

func (rw *Rewriter) RuleSet() *rule.RuleSet {
	return rw.set
}

// Rewrite resolves the set against buf and performs one left-to-right splice.
//
// On a conflict or replacement failure the returned Result keeps Final equal
// to Original, carries no changes, and the error is returned alongside it.
func (rw *Rewriter) Rewrite(fileID, buf string) (*Result, error) {
	res := &Result{FileID: fileID, Original: buf, Final: buf}

	resolution, err := rw.set.Resolve(fileID, buf)
	if resolution != nil {
		res.Participating = resolution.Participating
		res.PatternErrors = resolution.PatternErrors
	}
	if err != nil {
		return res, err
	}

	var b strings.Builder
	b.Grow(len(buf))
	changes := make([]ChangeRecord, 0, len(resolution.Matches))
	last := 0
	for _, m := range resolution.Matches {
		r, ok := rw.set.Rule(m.RuleID)
		if !ok {
			return res, errors.Errorf("match references unknown rule %q", m.RuleID)
		}
		after, err := r.Apply(buf, m)
		if err != nil {
			return res, errors.Errorf("file %q: %w", fileID, err)
		}
		b.WriteString(buf[last:m.Span.Start])
		b.WriteString(after)
		last = m.Span.End
		changes = append(changes, ChangeRecord{
			RuleID: m.RuleID,
			FileID: fileID,
			Span:   m.Span,
			Before: m.Text(buf),
			After:  after,
		})
	}
	b.WriteString(buf[last:])

	res.Final = b.String()
	res.Changes = changes
	res.Unmatched = resolution.Unmatched()
	return res, nil
}

// Rewrite is a convenience for a one-off Rewriter
func Rewrite(fileID, buf string, set *rule.RuleSet) (*Result, error) {
	return New(set).Rewrite(fileID, buf)
}
