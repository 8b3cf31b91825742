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

package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rule"
	"github.com/walteh/rewriterc/pkg/verify"
)

func TestSummarize(t *testing.T) {
	set, err := rule.NewSet(rule.RejectOnOverlap,
		&rule.Rule{ID: "alert", Pattern: pattern.Literal(`variant="danger"`, pattern.Options{}), Replace: rule.MustTemplate(`variant="error"`), Idempotent: true},
		&rule.Rule{ID: "tail", Pattern: pattern.Literal(`danger"`, pattern.Options{}), Replace: rule.Delete(), Files: []string{"bad/*"}},
		&rule.Rule{ID: "stray", Pattern: pattern.Regex(`<\?(?P<name>\w+)`, pattern.Options{}), Replace: rule.MustTemplate(`<${name}`), Idempotent: true},
	)
	require.NoError(t, err)

	b := batch.Run(context.Background(), []batch.File{
		{ID: "ok.tsx", Content: `<Alert variant="danger" /><?Loading />`},
		{ID: "bad/x.tsx", Content: `<Alert variant="danger" />`},
		{ID: "none.tsx", Content: `<Button />`},
	}, set, batch.Options{Mode: batch.ModeBestEffort})

	issues := []verify.Issue{{Kind: verify.IdempotencyViolation, FileID: "ok.tsx", RuleID: "alert"}}
	rep := Summarize(b, issues)

	assert.Equal(t, b.ID, rep.BatchID)
	require.Len(t, rep.Files, 3)

	ok := rep.Files[0]
	assert.Equal(t, "ok.tsx", ok.FileID)
	assert.Equal(t, 2, ok.Counts.Applied)
	assert.Equal(t, 0, ok.Counts.Unmatched)
	assert.Equal(t, 1, ok.Counts.Violations)
	assert.True(t, ok.Changed)
	assert.True(t, ok.Committed)

	bad := rep.Files[1]
	assert.Equal(t, 1, bad.Counts.Conflicts)
	assert.Equal(t, 0, bad.Counts.Failures)
	assert.False(t, bad.Committed)
	require.Len(t, bad.Errors, 1)
	assert.Contains(t, bad.Errors[0], "[16,23)")

	none := rep.Files[2]
	assert.Equal(t, []string{"alert", "stray"}, none.Unmatched)

	assert.Equal(t, Counts{Applied: 2, Unmatched: 2, Conflicts: 1, Violations: 1}, rep.Totals)
	assert.Empty(t, rep.Stale, "alert and stray applied in ok.tsx")
	assert.Equal(t, []string{"ok.tsx"}, rep.ChangedFiles())
}

func TestSummarize_StaleRules(t *testing.T) {
	set, err := rule.NewSet(rule.FirstMatchWins,
		&rule.Rule{ID: "alert", Pattern: pattern.Literal(`variant="danger"`, pattern.Options{}), Replace: rule.MustTemplate(`variant="error"`), Idempotent: true},
		&rule.Rule{ID: "old", Pattern: pattern.Literal(`<OldButton`, pattern.Options{}), Replace: rule.MustTemplate(`<Button`), Idempotent: true},
	)
	require.NoError(t, err)

	b := batch.Run(context.Background(), []batch.File{
		{ID: "a.tsx", Content: `<Alert variant="danger" />`},
		{ID: "b.tsx", Content: `<Button />`},
	}, set, batch.Options{})

	rep := Summarize(b, nil)
	assert.Equal(t, []string{"old"}, rep.Stale)
	assert.Equal(t, SuccessWithWarnings, rep.Classify())
}

func TestReport_Classify(t *testing.T) {
	tests := []struct {
		name   string
		mode   batch.Mode
		totals Counts
		stale  []string
		want   Outcome
		code   int
	}{
		{name: "clean", mode: batch.ModeAtomic, totals: Counts{Applied: 3}, want: Success, code: 0},
		{name: "nothing_to_do", mode: batch.ModeAtomic, totals: Counts{}, want: Success, code: 0},
		{name: "unmatched_in_some_files", mode: batch.ModeAtomic, totals: Counts{Applied: 1, Unmatched: 2}, want: Success, code: 0},
		{name: "stale_rule", mode: batch.ModeAtomic, totals: Counts{Applied: 1, Unmatched: 2}, stale: []string{"old"}, want: SuccessWithWarnings, code: 2},
		{name: "conflict_atomic", mode: batch.ModeAtomic, totals: Counts{Conflicts: 1}, want: Failure, code: 1},
		{name: "conflict_best_effort", mode: batch.ModeBestEffort, totals: Counts{Conflicts: 1}, want: SuccessWithWarnings, code: 2},
		{name: "pattern_error_atomic", mode: batch.ModeAtomic, totals: Counts{PatternErrors: 1}, want: Failure, code: 1},
		{name: "violation_atomic", mode: batch.ModeAtomic, totals: Counts{Violations: 1}, want: Failure, code: 1},
		{name: "violation_best_effort", mode: batch.ModeBestEffort, totals: Counts{Violations: 1}, want: SuccessWithWarnings, code: 2},
		{name: "overlap_always_fails", mode: batch.ModeBestEffort, totals: Counts{Overlaps: 1}, want: Failure, code: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &Report{Mode: tt.mode, Totals: tt.totals, Stale: tt.stale}
			got := rep.Classify()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.code, got.ExitCode())
			assert.NotEmpty(t, got.String())
		})
	}
}
