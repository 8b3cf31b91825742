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
	"iter"
	"regexp"
	"strings"
	"unicode"
)

// characters around which LooseWhitespace tolerates optional whitespace
const loosePunct = "=(){}[],;:<>/"

// textPattern backs both literal and regex patterns. Literals are quoted into
// an RE2 program so the two kinds share one scanner.
type textPattern struct {
	kind   Kind
	source string
	opts   Options
	re     *regexp.Regexp
	group  int // submatch index delimiting the reported span
	names  []string
	err    *PatternError
}

// Literal matches source verbatim (modulo the case and whitespace options)
func Literal(source string, opts Options) Pattern {
	p := &textPattern{kind: KindLiteral, source: source, opts: opts}
	if source == "" {
		p.err = malformed(KindLiteral, source, 0, "literal is empty")
		return p
	}
	expr := regexp.QuoteMeta(source)
	if opts.LooseWhitespace {
		expr = loosen(source)
		if expr == "" {
			p.err = malformed(KindLiteral, source, 0, "literal is only whitespace")
			return p
		}
	}
	p.compile(expr)
	return p
}

// Regex matches an RE2 expression with leftmost-longest semantics. Only named
// groups are exposed as captures.
func Regex(source string, opts Options) Pattern {
	p := &textPattern{kind: KindRegex, source: source, opts: opts}
	if source == "" {
		p.err = malformed(KindRegex, source, 0, "expression is empty")
		return p
	}
	// validate standalone first so wrapping cannot rebalance a bad source
	if _, err := regexp.Compile(source); err != nil {
		p.err = malformed(KindRegex, source, -1, "%s", err.Error())
		return p
	}
	p.compile(source)
	return p
}

func (p *textPattern) compile(expr string) {
	anchor, err := validateAnchor(p.opts.Anchor)
	if err != nil {
		p.err = malformed(p.kind, p.source, -1, "%s", err.Error())
		return
	}
	p.opts.Anchor = anchor

	flags := ""
	if p.opts.CaseInsensitive {
		flags += "i"
	}
	if p.opts.DotAll {
		flags += "s"
	}
	if anchor == AnchorWholeLine {
		flags += "m"
		expr = `^[ \t]*(` + expr + `)[ \t\r]*$`
		p.group = 1
	} else {
		expr = "(?:" + expr + ")"
	}
	if flags != "" {
		expr = "(?" + flags + ")" + expr
	}

	re, cerr := regexp.Compile(expr)
	if cerr != nil {
		p.err = malformed(p.kind, p.source, -1, "%s", cerr.Error())
		return
	}
	re.Longest()
	p.re = re
	for _, name := range re.SubexpNames() {
		if name != "" {
			p.names = append(p.names, name)
		}
	}
}

func (p *textPattern) Kind() Kind         { return p.kind }
func (p *textPattern) Source() string     { return p.source }
func (p *textPattern) Options() Options   { return p.opts }
func (p *textPattern) Captures() []string { return append([]string(nil), p.names...) }

func (p *textPattern) Find(buf string) (iter.Seq[Match], error) {
	if p.err != nil {
		return nil, p.err
	}
	return func(yield func(Match) bool) {
		var sc *scanner
		if p.opts.Anchor == AnchorWholeElement {
			sc = newScanner(buf)
		}
		// matches come in growing windows over the whole buffer so that
		// assertions like ^ and \b keep their context; a consumer that stops
		// early stops the scan after at most twice the consumed region
		done := 0
		for limit := 4; ; limit *= 2 {
			locs := p.re.FindAllStringSubmatchIndex(buf, limit)
			for _, loc := range locs[done:] {
				span := Span{Start: loc[2*p.group], End: loc[2*p.group+1]}
				if span.Len() == 0 {
					continue
				}
				if sc != nil && !isWholeElement(sc, span) {
					continue
				}
				if !yield(Match{Span: span, Captured: p.captures(buf, loc)}) {
					return
				}
			}
			if len(locs) < limit {
				return
			}
			done = len(locs)
		}
	}, nil
}

func (p *textPattern) captures(buf string, loc []int) map[string]string {
	if len(p.names) == 0 {
		return map[string]string{}
	}
	caps := make(map[string]string, len(p.names))
	for i, name := range p.re.SubexpNames() {
		if name == "" {
			continue
		}
		if loc[2*i] < 0 {
			caps[name] = ""
			continue
		}
		caps[name] = buf[loc[2*i]:loc[2*i+1]]
	}
	return caps
}

// loosen turns a literal into an expression where whitespace runs match any
// whitespace and punctuation may be surrounded by optional whitespace. Leading
// and trailing whitespace of the literal is dropped so spans never absorb
// surrounding indentation.
func loosen(lit string) string {
	lit = strings.TrimSpace(lit)
	var b strings.Builder
	pending := ""
	wrote := false
	flush := func() {
		if pending != "" && wrote {
			b.WriteString(pending)
		}
		pending = ""
	}
	for _, r := range lit {
		switch {
		case unicode.IsSpace(r):
			if pending == "" {
				pending = `\s+`
			}
		case strings.ContainsRune(loosePunct, r):
			pending = `\s*`
			flush()
			b.WriteString(regexp.QuoteMeta(string(r)))
			wrote = true
			pending = `\s*`
		default:
			flush()
			b.WriteString(regexp.QuoteMeta(string(r)))
			wrote = true
		}
	}
	return b.String()
}

func isWholeElement(sc *scanner, span Span) bool {
	buf := sc.buf
	if buf[span.Start] != '<' || buf[span.End-1] != '>' {
		return false
	}
	el, ok := sc.element(span.Start, 0)
	return ok && el.end == span.End
}
