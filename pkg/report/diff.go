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
	"bytes"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/rewrite"
	"gitlab.com/tozd/go/errors"
)

// ContextLines is the number of unchanged lines kept around each edit
const ContextLines = 3

const noNewlineMarker = `\ No newline at end of file`

// UnifiedDiff renders the change records of every changed file as one
// multi-file unified diff. Hunks come straight from the records, so no
// text diffing is involved.
func UnifiedDiff(results []*batch.FileResult) ([]byte, error) {
	var fds []*diff.FileDiff
	for _, fr := range results {
		if !fr.Changed() || len(fr.Changes) == 0 {
			continue
		}
		fd, err := FileDiff(fr.FileID, fr.Original, fr.Changes)
		if err != nil {
			return nil, err
		}
		fds = append(fds, fd)
	}
	if len(fds) == 0 {
		return nil, nil
	}
	out, err := diff.PrintMultiFileDiff(fds)
	if err != nil {
		return nil, errors.Errorf("printing diff: %w", err)
	}
	return out, nil
}

// FileDiff builds the diff of one file from its original text and the
// change records applied to it
func FileDiff(fileID, original string, changes []rewrite.ChangeRecord) (*diff.FileDiff, error) {
	lines := splitLines(original)
	blocks, err := buildBlocks(original, lines, changes)
	if err != nil {
		return nil, errors.Errorf("diffing %q: %w", fileID, err)
	}
	return &diff.FileDiff{
		OrigName: "a/" + fileID,
		NewName:  "b/" + fileID,
		Hunks:    buildHunks(original, lines, blocks),
	}, nil
}

// line is a byte range of one line including its newline
type line struct {
	start, end int
}

func splitLines(s string) []line {
	var out []line
	start := 0
	for start < len(s) {
		nl := strings.IndexByte(s[start:], '\n')
		if nl < 0 {
			out = append(out, line{start, len(s)})
			break
		}
		out = append(out, line{start, start + nl + 1})
		start += nl + 1
	}
	return out
}

func lineAt(lines []line, off int) int {
	return sort.Search(len(lines), func(i int) bool { return lines[i].end > off })
}

// block is a run of whole original lines [first, last] touched by edits,
// with its rewritten text
type block struct {
	first, last int
	changes     []rewrite.ChangeRecord
	text        string
}

func buildBlocks(original string, lines []line, changes []rewrite.ChangeRecord) ([]*block, error) {
	sorted := make([]rewrite.ChangeRecord, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	var blocks []*block
	prevEnd := 0
	for _, c := range sorted {
		if c.Span.Start < prevEnd || c.Span.End > len(original) || c.Span.Start > c.Span.End {
			return nil, errors.Errorf("change from rule %q has invalid span %s", c.RuleID, c.Span)
		}
		prevEnd = c.Span.End
		first := lineAt(lines, c.Span.Start)
		last := lineAt(lines, max(c.Span.End-1, c.Span.Start))
		if n := len(blocks); n > 0 && first <= blocks[n-1].last {
			b := blocks[n-1]
			b.last = max(b.last, last)
			b.changes = append(b.changes, c)
			continue
		}
		blocks = append(blocks, &block{first: first, last: last, changes: []rewrite.ChangeRecord{c}})
	}

	// a block whose rewrite drops its trailing newline swallows the next line;
	// an empty rewrite removed whole lines and stands alone
	for i := 0; i < len(blocks); i++ {
		b := blocks[i]
		for {
			b.text = b.render(original, lines)
			if b.text == "" || strings.HasSuffix(b.text, "\n") || b.last+1 >= len(lines) {
				break
			}
			b.last++
			if i+1 < len(blocks) && blocks[i+1].first <= b.last {
				next := blocks[i+1]
				b.last = max(b.last, next.last)
				b.changes = append(b.changes, next.changes...)
				blocks = append(blocks[:i+1], blocks[i+2:]...)
			}
		}
	}
	return blocks, nil
}

func (b *block) render(original string, lines []line) string {
	start, end := lines[b.first].start, lines[b.last].end
	var sb strings.Builder
	last := start
	for _, c := range b.changes {
		sb.WriteString(original[last:c.Span.Start])
		sb.WriteString(c.After)
		last = c.Span.End
	}
	sb.WriteString(original[last:end])
	return sb.String()
}

func buildHunks(original string, lines []line, blocks []*block) []*diff.Hunk {
	// group blocks whose context windows touch
	var groups [][]*block
	for _, b := range blocks {
		if n := len(groups); n > 0 {
			prev := groups[n-1][len(groups[n-1])-1]
			if b.first-prev.last-1 <= 2*ContextLines {
				groups[n-1] = append(groups[n-1], b)
				continue
			}
		}
		groups = append(groups, []*block{b})
	}

	var hunks []*diff.Hunk
	delta := 0 // new line number minus original line number so far
	for _, g := range groups {
		from := max(g[0].first-ContextLines, 0)
		to := min(g[len(g)-1].last+ContextLines, len(lines)-1)

		var body bytes.Buffer
		origCount, newCount := 0, 0
		writeLine := func(prefix byte, text string) {
			body.WriteByte(prefix)
			body.WriteString(text)
			if !strings.HasSuffix(text, "\n") {
				body.WriteString("\n" + noNewlineMarker + "\n")
			}
		}

		cursor := from
		for _, b := range g {
			for ; cursor < b.first; cursor++ {
				writeLine(' ', original[lines[cursor].start:lines[cursor].end])
				origCount++
				newCount++
			}
			for i := b.first; i <= b.last; i++ {
				writeLine('-', original[lines[i].start:lines[i].end])
				origCount++
			}
			for _, l := range splitLines(b.text) {
				writeLine('+', b.text[l.start:l.end])
				newCount++
			}
			cursor = b.last + 1
		}
		for ; cursor <= to; cursor++ {
			writeLine(' ', original[lines[cursor].start:lines[cursor].end])
			origCount++
			newCount++
		}

		h := &diff.Hunk{
			OrigStartLine: int32(from + 1),
			OrigLines:     int32(origCount),
			NewStartLine:  int32(from + 1 + delta),
			NewLines:      int32(newCount),
			Body:          body.Bytes(),
		}
		if newCount == 0 {
			h.NewStartLine--
		}
		hunks = append(hunks, h)
		delta += newCount - origCount
	}
	return hunks
}
