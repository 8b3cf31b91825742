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

package pattern

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🏷️ Kind tags which matching strategy a Pattern uses
type Kind string

const (
	KindLiteral    Kind = "literal"
	KindRegex      Kind = "regex"
	KindStructural Kind = "structural"
)

// ParseKind converts a config string into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLiteral:
		return KindLiteral, nil
	case KindRegex:
		return KindRegex, nil
	case KindStructural:
		return KindStructural, nil
	default:
		return "", errors.Errorf("unknown pattern kind %q (want literal, regex or structural)", s)
	}
}

// ⚓ Anchor restricts where a match may sit in the buffer
type Anchor string

const (
	AnchorSubstring    Anchor = "substring"
	AnchorWholeLine    Anchor = "whole-line"
	AnchorWholeElement Anchor = "whole-element"
)

// ParseAnchor converts a config string into an Anchor. The empty string is substring.
func ParseAnchor(s string) (Anchor, error) {
	switch Anchor(strings.ToLower(strings.TrimSpace(s))) {
	case "", AnchorSubstring:
		return AnchorSubstring, nil
	case AnchorWholeLine:
		return AnchorWholeLine, nil
	case AnchorWholeElement:
		return AnchorWholeElement, nil
	default:
		return "", errors.Errorf("unknown anchor %q (want substring, whole-line or whole-element)", s)
	}
}

// 🔧 Options tune how a pattern source is interpreted
type Options struct {
	CaseInsensitive bool
	Anchor          Anchor
	// LooseWhitespace lets literal patterns match across reformatted source.
	LooseWhitespace bool
	// DotAll makes '.' match newlines in regex patterns.
	DotAll bool
}

// 📏 Span is a half-open byte range [Start, End) into a buffer
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether the two spans share at least one byte
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Intersect returns the shared range of two overlapping spans
func (s Span) Intersect(o Span) Span {
	return Span{Start: max(s.Start, o.Start), End: min(s.End, o.End)}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// 🎯 Match is one occurrence of a pattern in a buffer
type Match struct {
	RuleID   string
	Span     Span
	Captured map[string]string
}

// Text returns the matched text of buf
func (m Match) Text(buf string) string {
	return buf[m.Span.Start:m.Span.End]
}

// 🔍 Pattern is a pure, stateless description of what to find.
//
// Find never mutates buf and yields matches in ascending start order. A
// malformed pattern fails every Find call with a *PatternError instead of
// yielding nothing.
type Pattern interface {
	Kind() Kind
	Source() string
	Options() Options
	// Captures lists the capture names the pattern can produce.
	Captures() []string
	Find(buf string) (iter.Seq[Match], error)
}

// New builds a pattern of the given kind. Construction never fails; problems
// with the source are reported by Find.
func New(kind Kind, source string, opts Options) Pattern {
	switch kind {
	case KindLiteral:
		return Literal(source, opts)
	case KindRegex:
		return Regex(source, opts)
	case KindStructural:
		return Structural(source, opts)
	default:
		return &broken{kind: kind, source: source, opts: opts, err: &PatternError{
			Kind:   kind,
			Source: source,
			Offset: -1,
			Reason: fmt.Sprintf("unknown pattern kind %q", kind),
		}}
	}
}

// Collect drains Find into a slice
func Collect(p Pattern, buf string) ([]Match, error) {
	seq, err := p.Find(buf)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// Check reports the construction error of p, if any
func Check(p Pattern) error {
	_, err := p.Find("")
	return err
}

type broken struct {
	kind   Kind
	source string
	opts   Options
	err    *PatternError
}

func (b *broken) Kind() Kind         { return b.kind }
func (b *broken) Source() string     { return b.source }
func (b *broken) Options() Options   { return b.opts }
func (b *broken) Captures() []string { return nil }

func (b *broken) Find(string) (iter.Seq[Match], error) {
	return nil, b.err
}

func validateAnchor(a Anchor) (Anchor, error) {
	if a == "" {
		return AnchorSubstring, nil
	}
	return ParseAnchor(string(a))
}
