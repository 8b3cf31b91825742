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

package batch

import (
	"context"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rewrite"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🎚️ Mode decides whether one failing file blocks the others
type Mode string

const (
	ModeAtomic     Mode = "atomic"
	ModeBestEffort Mode = "best-effort"
)

// ParseMode converts a config string into a Mode. The empty string is atomic.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAtomic:
		return ModeAtomic, nil
	case ModeBestEffort:
		return ModeBestEffort, nil
	default:
		return "", errors.Errorf("unknown mode %q (want atomic or best-effort)", s)
	}
}

// 📄 File is one input of a batch
type File struct {
	ID      string
	Content string
	// Skip names rules that must not run on this file.
	Skip []string
}

// 📋 FileResult is the per-file outcome of a batch
type FileResult struct {
	FileID   string
	Original string
	Final    string
	Changes  []rewrite.ChangeRecord
	// Participating lists the rules evaluated for the file, also when it
	// failed.
	Participating []string
	Unmatched     []string
	Errors        []error
	// Committed is true when the caller may persist Final.
	Committed bool
	// Skipped is true when the file was never started.
	Skipped bool
}

// Changed reports whether Final differs from Original
func (r *FileResult) Changed() bool {
	return r.Final != r.Original
}

// Conflicts returns the conflict errors recorded for the file
func (r *FileResult) Conflicts() []*rule.ConflictError {
	var out []*rule.ConflictError
	for _, err := range r.Errors {
		if cerr, ok := rule.AsConflictError(err); ok {
			out = append(out, cerr)
		}
	}
	return out
}

// PatternErrors returns the malformed-pattern errors recorded for the file
func (r *FileResult) PatternErrors() []*pattern.PatternError {
	var out []*pattern.PatternError
	for _, err := range r.Errors {
		if perr, ok := pattern.AsPatternError(err); ok {
			out = append(out, perr)
		}
	}
	return out
}

// Fatal reports whether the file could not be rewritten at all. Pattern
// errors disqualify single rules and are not fatal on their own.
func (r *FileResult) Fatal() bool {
	if r.Skipped {
		return true
	}
	for _, err := range r.Errors {
		if _, ok := pattern.AsPatternError(err); !ok {
			return true
		}
	}
	return false
}

// 🔧 Options configure a batch run
type Options struct {
	Mode Mode
	// Workers bounds concurrent files; zero means GOMAXPROCS.
	Workers int
}

// 📦 Batch is the ordered outcome of one run
type Batch struct {
	ID      string
	Mode    Mode
	Results []*FileResult
}

// Committed reports whether every result may be persisted
func (b *Batch) Committed() bool {
	for _, r := range b.Results {
		if !r.Committed {
			return false
		}
	}
	return true
}

// 🏃 Orchestrator runs a rule set over many files.
//
// It never touches storage; persisting committed results is the caller's job.
type Orchestrator struct {
	rw   *rewrite.Rewriter
	opts Options
}

func New(set *rule.RuleSet, opts Options) *Orchestrator {
	if opts.Mode == "" {
		opts.Mode = ModeAtomic
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{rw: rewrite.New(set), opts: opts}
}

func (o *Orchestrator) Options() Options {
	return o.opts
}

// Run rewrites every file and returns results in input order.
//
// Cancelling ctx skips files that have not started; a started file always
// finishes.
func (o *Orchestrator) Run(ctx context.Context, files []File) *Batch {
	b := &Batch{
		ID:      uuid.NewString(),
		Mode:    o.opts.Mode,
		Results: make([]*FileResult, len(files)),
	}
	logger := zerolog.Ctx(ctx).With().Str("batch", b.ID).Str("mode", string(b.Mode)).Logger()
	logger.Debug().Int("files", len(files)).Int("workers", o.opts.Workers).Msg("starting batch")

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			b.Results[i] = o.runFile(ctx, &logger, f)
			return nil
		})
	}
	_ = g.Wait()

	o.commit(b)

	logger.Debug().Bool("committed", b.Committed()).Msg("batch finished")
	return b
}

func (o *Orchestrator) runFile(ctx context.Context, logger *zerolog.Logger, f File) *FileResult {
	fr := &FileResult{FileID: f.ID, Original: f.Content, Final: f.Content}
	if err := ctx.Err(); err != nil {
		fr.Skipped = true
		fr.Errors = append(fr.Errors, errors.Errorf("skipping %q: %w", f.ID, err))
		logger.Warn().Str("file", f.ID).Err(err).Msg("file skipped")
		return fr
	}

	rw := o.rw
	if len(f.Skip) > 0 {
		rw = rewrite.New(rw.RuleSet().Without(f.Skip...))
	}
	res, err := rw.Rewrite(f.ID, f.Content)
	fr.Participating = res.Participating
	for _, perr := range res.PatternErrors {
		fr.Errors = append(fr.Errors, perr)
	}
	if err != nil {
		fr.Errors = append(fr.Errors, err)
		logger.Warn().Str("file", f.ID).Err(err).Msg("file not rewritten")
		return fr
	}

	fr.Final = res.Final
	fr.Changes = res.Changes
	fr.Unmatched = res.Unmatched
	logger.Debug().
		Str("file", f.ID).
		Int("changes", len(res.Changes)).
		Strs("unmatched", res.Unmatched).
		Int("pattern_errors", len(res.PatternErrors)).
		Msg("file rewritten")
	return fr
}

// commit applies the mode's persistence policy to finished results
func (o *Orchestrator) commit(b *Batch) {
	if o.opts.Mode == ModeAtomic {
		ok := true
		for _, r := range b.Results {
			if r.Skipped || len(r.Errors) > 0 {
				ok = false
				break
			}
		}
		for _, r := range b.Results {
			r.Committed = ok
		}
		return
	}
	for _, r := range b.Results {
		r.Committed = !r.Fatal()
	}
}

// Run is a convenience for a one-off Orchestrator
func Run(ctx context.Context, files []File, set *rule.RuleSet, opts Options) *Batch {
	return New(set, opts).Run(ctx, files)
}
