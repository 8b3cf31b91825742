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
	"slices"

	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/verify"
)

// 🚦 Outcome classifies a whole run for a CLI exit code
type Outcome int

const (
	Success Outcome = iota
	SuccessWithWarnings
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SuccessWithWarnings:
		return "success with warnings"
	default:
		return "failure"
	}
}

// ExitCode maps the outcome to 0, 2 and 1
func (o Outcome) ExitCode() int {
	switch o {
	case Success:
		return 0
	case SuccessWithWarnings:
		return 2
	default:
		return 1
	}
}

// 🔢 Counts are the per-file (or total) tallies of a run
type Counts struct {
	Applied       int
	Unmatched     int
	Conflicts     int
	PatternErrors int
	// Failures are other fatal errors: replacement failures and skipped files.
	Failures    int
	Violations  int
	Overlaps    int
	Regressions int
}

func (c *Counts) add(o Counts) {
	c.Applied += o.Applied
	c.Unmatched += o.Unmatched
	c.Conflicts += o.Conflicts
	c.PatternErrors += o.PatternErrors
	c.Failures += o.Failures
	c.Violations += o.Violations
	c.Overlaps += o.Overlaps
	c.Regressions += o.Regressions
}

// 📄 FileReport summarizes one file of a batch
type FileReport struct {
	FileID    string
	Counts    Counts
	Unmatched []string
	Errors    []string
	Changed   bool
	Committed bool
	Skipped   bool
}

// 📊 Report is what a caller prints after a run
type Report struct {
	BatchID string
	Mode    batch.Mode
	Files   []FileReport
	Totals  Counts
	Issues  []verify.Issue
	// Stale lists rules that were unmatched in every file they applied to.
	Stale []string
}

// Summarize folds a batch and its verification issues into a report.
// Files keep the batch order.
func Summarize(b *batch.Batch, issues []verify.Issue) *Report {
	rep := &Report{
		BatchID: b.ID,
		Mode:    b.Mode,
		Files:   make([]FileReport, 0, len(b.Results)),
		Issues:  issues,
	}

	byFile := make(map[string][]verify.Issue)
	for _, is := range issues {
		byFile[is.FileID] = append(byFile[is.FileID], is)
	}

	applied := make(map[string]bool)
	unmatched := make(map[string]bool)

	for _, fr := range b.Results {
		for _, c := range fr.Changes {
			applied[c.RuleID] = true
		}
		for _, id := range fr.Unmatched {
			unmatched[id] = true
		}

		f := FileReport{
			FileID:    fr.FileID,
			Unmatched: fr.Unmatched,
			Changed:   fr.Changed(),
			Committed: fr.Committed,
			Skipped:   fr.Skipped,
		}
		f.Counts.Applied = len(fr.Changes)
		f.Counts.Unmatched = len(fr.Unmatched)
		f.Counts.Conflicts = len(fr.Conflicts())
		f.Counts.PatternErrors = len(fr.PatternErrors())
		f.Counts.Failures = len(fr.Errors) - f.Counts.Conflicts - f.Counts.PatternErrors
		for _, err := range fr.Errors {
			f.Errors = append(f.Errors, err.Error())
		}
		for _, is := range byFile[fr.FileID] {
			switch is.Kind {
			case verify.IdempotencyViolation:
				f.Counts.Violations++
			case verify.OverlappingEdits:
				f.Counts.Overlaps++
			case verify.SyntaxRegression:
				f.Counts.Regressions++
			}
		}
		rep.Totals.add(f.Counts)
		rep.Files = append(rep.Files, f)
	}

	for id := range unmatched {
		if !applied[id] {
			rep.Stale = append(rep.Stale, id)
		}
	}
	slices.Sort(rep.Stale)
	return rep
}

// Classify decides the outcome of the run.
//
// Overlapping edits always fail. Conflicts, pattern errors, other file
// failures, idempotency violations and syntax regressions fail an atomic run
// and downgrade a best-effort run to warnings. A stale rule alone is a
// warning; a rule unmatched in only some files is not.
func (r *Report) Classify() Outcome {
	t := r.Totals
	if t.Overlaps > 0 {
		return Failure
	}
	serious := t.Conflicts + t.PatternErrors + t.Failures + t.Violations + t.Regressions
	if serious > 0 {
		if r.Mode == batch.ModeBestEffort {
			return SuccessWithWarnings
		}
		return Failure
	}
	if len(r.Stale) > 0 {
		return SuccessWithWarnings
	}
	return Success
}

// ChangedFiles returns the ids of files whose final text differs
func (r *Report) ChangedFiles() []string {
	var out []string
	for _, f := range r.Files {
		if f.Changed {
			out = append(out, f.FileID)
		}
	}
	return out
}
