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

// Package verify checks rewrite results after the fact: idempotent rules
// must not match the final text, and recorded edits must not overlap.
package verify

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rewrite"
	"github.com/walteh/rewriterc/pkg/rule"
)

type IssueKind string

const (
	IdempotencyViolation IssueKind = "idempotency-violation"
	OverlappingEdits     IssueKind = "overlapping-edits"
	SyntaxRegression     IssueKind = "syntax-regression"
)

// 🔎 Issue is one verification finding. Issues never block a batch on their
// own; the caller classifies them.
type Issue struct {
	Kind   IssueKind
	RuleID string
	FileID string
	// Span is in final-buffer coordinates for idempotency violations and in
	// original coordinates for overlapping edits.
	Span pattern.Span
	// Line is 1-based, zero when not applicable.
	Line    int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.FileID, i.Kind, i.Message)
}

type Options struct {
	// Syntax enables the tree-sitter regression check for known extensions.
	Syntax bool
}

type Verifier struct {
	set  *rule.RuleSet
	opts Options
}

func New(set *rule.RuleSet, opts Options) *Verifier {
	return &Verifier{set: set, opts: opts}
}

// Verify checks one file result. Skipped and conflicted files are not
// re-matched since they carry no rewrite.
func (v *Verifier) Verify(ctx context.Context, fr *batch.FileResult) []Issue {
	var issues []Issue
	if !fr.Skipped && len(fr.Conflicts()) == 0 {
		issues = append(issues, v.idempotency(fr)...)
	}
	issues = append(issues, overlapping(fr.FileID, fr.Changes)...)
	if v.opts.Syntax && fr.Changed() {
		issues = append(issues, v.syntax(ctx, fr)...)
	}
	return issues
}

// VerifyBatch verifies every result in order
func (v *Verifier) VerifyBatch(ctx context.Context, b *batch.Batch) []Issue {
	var issues []Issue
	for _, fr := range b.Results {
		issues = append(issues, v.Verify(ctx, fr)...)
	}
	if len(issues) > 0 {
		zerolog.Ctx(ctx).Debug().Str("batch", b.ID).Int("issues", len(issues)).Msg("verification found issues")
	}
	return issues
}

func (v *Verifier) idempotency(fr *batch.FileResult) []Issue {
	var issues []Issue
	for _, r := range v.set.Rules() {
		// run-once rules assume the pre-rule state and are not re-checked
		if !r.Idempotent || !r.AppliesTo(fr.FileID, fr.Final) {
			continue
		}
		matches, err := r.Find(fr.Final)
		if err != nil {
			continue
		}
		for _, m := range matches {
			issues = append(issues, Issue{
				Kind:    IdempotencyViolation,
				RuleID:  r.ID,
				FileID:  fr.FileID,
				Span:    m.Span,
				Line:    lineOf(fr.Final, m.Span.Start),
				Message: fmt.Sprintf("rule %q still matches %q at %s after rewriting", r.ID, truncate(m.Text(fr.Final)), m.Span),
			})
		}
	}
	return issues
}

func overlapping(fileID string, changes []rewrite.ChangeRecord) []Issue {
	sorted := slices.SortedStableFunc(slices.Values(changes), func(a, b rewrite.ChangeRecord) int {
		return cmp.Or(cmp.Compare(a.Span.Start, b.Span.Start), cmp.Compare(a.Span.End, b.Span.End))
	})
	var issues []Issue
	for i := 1; i < len(sorted); i++ {
		// compare against every earlier record still reaching past this start
		for j := i - 1; j >= 0; j-- {
			prev, cur := sorted[j], sorted[i]
			if !prev.Span.Overlaps(cur.Span) {
				continue
			}
			span := prev.Span.Intersect(cur.Span)
			issues = append(issues, Issue{
				Kind:    OverlappingEdits,
				RuleID:  cur.RuleID,
				FileID:  fileID,
				Span:    span,
				Message: fmt.Sprintf("edits from rules %q and %q overlap at %s", prev.RuleID, cur.RuleID, span),
			})
		}
	}
	return issues
}

func (v *Verifier) syntax(ctx context.Context, fr *batch.FileResult) []Issue {
	lang := grammarFor(fr.FileID)
	if lang == nil {
		return nil
	}
	logger := zerolog.Ctx(ctx).With().Str("file", fr.FileID).Logger()

	before, err := firstFault(ctx, lang, fr.Original)
	if err != nil {
		logger.Debug().Err(err).Msg("syntax check skipped")
		return nil
	}
	if before != nil {
		// already broken; nothing to regress from
		return nil
	}
	after, err := firstFault(ctx, lang, fr.Final)
	if err != nil {
		logger.Debug().Err(err).Msg("syntax check skipped")
		return nil
	}
	if after == nil {
		return nil
	}

	msg := fmt.Sprintf("rewritten file no longer parses at line %d, column %d", after.line, after.column)
	switch {
	case after.missing != "":
		msg += fmt.Sprintf(": missing %q", after.missing)
	case after.near != "":
		msg += fmt.Sprintf(": unexpected %q", after.near)
	}
	return []Issue{{
		Kind:    SyntaxRegression,
		RuleID:  ruleNear(fr.Changes, fr.Final, after.line),
		FileID:  fr.FileID,
		Line:    after.line,
		Message: msg,
	}}
}

// ruleNear guesses which change introduced a fault on the given final line
func ruleNear(changes []rewrite.ChangeRecord, final string, line int) string {
	shift := 0
	for _, c := range changes {
		start := c.Span.Start + shift
		end := start + len(c.After)
		if lineOf(final, start) <= line && line <= lineOf(final, max(end-1, start)) {
			return c.RuleID
		}
		shift += len(c.After) - c.Span.Len()
	}
	return ""
}

func lineOf(buf string, offset int) int {
	offset = min(offset, len(buf))
	line := 1
	for i := 0; i < offset; i++ {
		if buf[i] == '\n' {
			line++
		}
	}
	return line
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
