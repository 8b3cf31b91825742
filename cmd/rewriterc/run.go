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

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/log"
	"github.com/walteh/rewriterc/pkg/report"
	"github.com/walteh/rewriterc/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🏃 run discovers, rewrites and verifies every selected file without
// touching the disk
func (e *env) run(ctx context.Context) (*batch.Batch, *report.Report, error) {
	ids, err := e.ws.Discover(ctx)
	if err != nil {
		return nil, nil, errors.Errorf("discovering files: %w", err)
	}
	files, err := e.ws.Load(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	e.st.Prepare(ctx, files)

	b := batch.Run(ctx, files, e.set, e.cfg.BatchOptions())
	issues := verify.New(e.set, verify.Options{Syntax: e.cfg.VerifySyntax}).VerifyBatch(ctx, b)
	return b, report.Summarize(b, issues), nil
}

// printFiles writes the per-file console lines of a batch
func (e *env) printFiles(ctx context.Context, b *batch.Batch) {
	e.ui.StartBatch(ctx, log.BatchOperation{
		ID:    b.ID,
		Mode:  string(b.Mode),
		Root:  e.ws.Root(),
		Files: len(b.Results),
	})
	for _, fr := range b.Results {
		if !fr.Changed() && len(fr.Errors) == 0 {
			continue
		}
		e.ui.LogFileResult(ctx, fr)
	}
	e.ui.EndBatch(ctx)
}

// printFindings lists errors, verification issues and rules that never
// applied anywhere in the batch
func (e *env) printFindings(b *batch.Batch, rep *report.Report) {
	for _, f := range rep.Files {
		for _, msg := range f.Errors {
			e.ui.Error(msg)
		}
	}
	for _, is := range rep.Issues {
		e.ui.Warning(is.String())
	}
	for _, id := range rep.Stale {
		e.ui.Warningf("rule %q matched nothing", id)
	}

	seen := map[string]bool{}
	for _, fr := range b.Results {
		for _, id := range fr.Participating {
			seen[id] = true
		}
	}
	for _, r := range e.set.Rules() {
		if !seen[r.ID] {
			e.ui.Infof("rule %q selected no files", r.ID)
		}
	}
}

// printSummary renders the totals table of a report
func printSummary(w io.Writer, rep *report.Report) error {
	t := rep.Totals
	data := pterm.TableData{
		{"files", "applied", "unmatched", "conflicts", "pattern errors", "failures", "violations", "overlaps", "regressions", "outcome"},
		{
			strconv.Itoa(len(rep.Files)),
			strconv.Itoa(t.Applied),
			strconv.Itoa(t.Unmatched),
			strconv.Itoa(t.Conflicts),
			strconv.Itoa(t.PatternErrors),
			strconv.Itoa(t.Failures),
			strconv.Itoa(t.Violations),
			strconv.Itoa(t.Overlaps),
			strconv.Itoa(t.Regressions),
			rep.Classify().String(),
		},
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Errorf("rendering summary: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, out)
	return nil
}

// outcomeError turns a non-success outcome into the command's exit status
func outcomeError(rep *report.Report) error {
	outcome := rep.Classify()
	if outcome == report.Success {
		return nil
	}
	return &exitError{code: outcome.ExitCode(), message: "run finished with " + outcome.String()}
}
