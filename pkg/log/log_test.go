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

package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/rewriterc/pkg/batch"
	"github.com/walteh/rewriterc/pkg/pattern"
	"github.com/walteh/rewriterc/pkg/rewrite"
	"github.com/walteh/rewriterc/pkg/rule"
	"gitlab.com/tozd/go/errors"
)

func line(symbol, path, status string) string {
	return fmt.Sprintf("%s %-*s %s", symbol, nameWidth, path, status)
}

func TestLogger(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_file_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFileOperation(context.Background(), FileOperation{
					Path:      "src/App.tsx",
					Status:    "2 changes",
					Changes:   2,
					IsWritten: true,
				})
			},
			wantLogs: []string{line("✓", "src/App.tsx", "2 changes")},
		},
		{
			name: "log_batch_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartBatch(context.Background(), BatchOperation{
					ID:    "b1",
					Mode:  "atomic",
					Root:  "/tmp/app",
					Files: 3,
				})
				logger.EndBatch(context.Background())
			},
			wantLogs: []string{
				"[rewriting /tmp/app]",
				"◆ 3 files • atomic",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("checking 4 rules")
			},
			wantLogs: []string{
				"rewriterc • checking 4 rules",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	logger := New(io.Discard, zerolog.Nop())

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx), "logger from context should be the same instance")

	assert.Panics(t, func() {
		FromContext(context.Background())
	}, "FromContext should panic when logger is missing")
}

func TestLoggerWritesStructuredCopy(t *testing.T) {
	structured := &bytes.Buffer{}
	logger := New(io.Discard, zerolog.New(structured))

	logger.LogFileOperation(context.Background(), FileOperation{Path: "a.tsx", Status: "held", IsHeld: true})
	assert.Contains(t, structured.String(), `"file":"a.tsx"`)
	assert.Contains(t, structured.String(), `"is_held":true`)
}

func TestOperationFor(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	change := rewrite.ChangeRecord{RuleID: "r", Span: pattern.Span{Start: 0, End: 1}}

	tests := []struct {
		name string
		fr   *batch.FileResult
		want string
	}{
		{
			name: "written",
			fr:   &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "b", Changes: []rewrite.ChangeRecord{change}, Committed: true},
			want: line("✓", "a.tsx", "1 change"),
		},
		{
			name: "held_by_atomic_batch",
			fr:   &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "b", Changes: []rewrite.ChangeRecord{change, change}},
			want: line("⟳", "a.tsx", "held"),
		},
		{
			name: "conflict",
			fr: &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "a", Errors: []error{
				&rule.ConflictError{FileID: "a.tsx", First: "x", Second: "y", Span: pattern.Span{Start: 5, End: 10}},
			}},
			want: line("✗", "a.tsx", "conflict"),
		},
		{
			name: "replacement_failure",
			fr:   &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "a", Errors: []error{errors.New("boom")}},
			want: line("✗", "a.tsx", "failed"),
		},
		{
			name: "skipped",
			fr:   &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "a", Skipped: true},
			want: line("✗", "a.tsx", "skipped"),
		},
		{
			name: "pattern_errors_only",
			fr: &batch.FileResult{FileID: "a.tsx", Original: "a", Final: "a", Committed: true, Errors: []error{
				&pattern.PatternError{RuleID: "r1", Kind: pattern.KindRegex, Source: "(", Offset: -1, Reason: "bad"},
				&pattern.PatternError{RuleID: "r2", Kind: pattern.KindRegex, Source: "[", Offset: -1, Reason: "bad"},
			}},
			want: line("✗", "a.tsx", "2 pattern errors"),
		},
		{
			name: "unchanged",
			fr:   &batch.FileResult{FileID: "b.tsx", Original: "a", Final: "a", Committed: true},
			want: line("-", "b.tsx", "unchanged"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())
			logger.LogFileResult(context.Background(), tt.fr)
			assert.Equal(t, tt.want, strings.TrimSpace(buf.String()))
		})
	}
}
