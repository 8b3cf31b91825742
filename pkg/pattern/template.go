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
	"regexp"
	"strings"
)

var captureName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type valueRule int

const (
	valueAny         valueRule = iota // name
	valueLitString                    // name="lit"
	valueLitExpr                      // name={expr}
	valueCaptureRaw                   // name=$cap
	valueCaptureText                  // name="$cap"
	valueCaptureExpr                  // name={$cap}
)

type attrTemplate struct {
	name    string
	absent  bool
	rule    valueRule
	literal string
	capture string
}

type shape int

const (
	shapeSelfClosing shape = iota
	shapePaired
	shapeOpenTag // template is only an opening tag
)

type childTemplate struct {
	gap  bool
	elem *elemTemplate
}

// elemTemplate is a parsed structural pattern source
type elemTemplate struct {
	name      string
	attrs     []attrTemplate
	openAttrs bool
	shape     shape
	children  []childTemplate
}

func (t *elemTemplate) anyChildren() bool {
	return len(t.children) == 1 && t.children[0].gap
}

func (t *elemTemplate) captureNames(into []string) []string {
	for _, a := range t.attrs {
		if a.capture != "" {
			into = append(into, a.capture)
		}
	}
	for _, c := range t.children {
		if c.elem != nil {
			into = c.elem.captureNames(into)
		}
	}
	return into
}

type templateParser struct {
	src string
	pos int
}

func (p *templateParser) fail(format string, args ...any) *PatternError {
	return malformed(KindStructural, p.src, p.pos, format, args...)
}

func (p *templateParser) skipSpace() {
	p.pos = skipSpace(p.src, p.pos)
}

func (p *templateParser) rest() string {
	return p.src[p.pos:]
}

func parseTemplate(src string) (*elemTemplate, *PatternError) {
	p := &templateParser{src: src}
	p.skipSpace()
	if p.pos >= len(src) {
		return nil, p.fail("template is empty")
	}
	t, err := p.element(true)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(src) {
		return nil, p.fail("unexpected text after element: %q", truncate(p.rest()))
	}
	return t, nil
}

func (p *templateParser) element(top bool) (*elemTemplate, *PatternError) {
	if p.pos >= len(p.src) || p.src[p.pos] != '<' {
		return nil, p.fail("expected '<'")
	}
	p.pos++
	name, next := scanName(p.src, p.pos)
	if name == "" {
		return nil, p.fail("missing tag name")
	}
	p.pos = next
	t := &elemTemplate{name: name}

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated tag <%s>; expected '>' or '/>'", name)
		}
		rest := p.rest()
		switch {
		case strings.HasPrefix(rest, "/>"):
			p.pos += 2
			t.shape = shapeSelfClosing
			return t, nil
		case strings.HasPrefix(rest, ">"):
			p.pos++
			if top && strings.TrimSpace(p.rest()) == "" {
				t.shape = shapeOpenTag
				return t, nil
			}
			t.shape = shapePaired
			if err := p.children(t); err != nil {
				return nil, err
			}
			return t, nil
		case strings.HasPrefix(rest, "..."):
			p.pos += 3
			t.openAttrs = true
		case rest[0] == '!':
			p.pos++
			attrName, next := scanName(p.src, p.pos)
			if attrName == "" {
				return nil, p.fail("expected attribute name after '!'")
			}
			p.pos = next
			t.attrs = append(t.attrs, attrTemplate{name: attrName, absent: true})
		case isNameStart(rest[0]):
			a, err := p.attribute()
			if err != nil {
				return nil, err
			}
			t.attrs = append(t.attrs, a)
		default:
			return nil, p.fail("unexpected character %q in tag <%s>", rest[0], name)
		}
	}
}

func (p *templateParser) attribute() (attrTemplate, *PatternError) {
	attrName, next := scanName(p.src, p.pos)
	p.pos = next
	a := attrTemplate{name: attrName, rule: valueAny}
	save := p.pos
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '=' {
		p.pos = save
		return a, nil
	}
	p.pos++
	p.skipSpace()
	if p.pos >= len(p.src) {
		return a, p.fail("missing value for attribute %q", attrName)
	}

	switch c := p.src[p.pos]; c {
	case '"', '\'':
		end := strings.IndexByte(p.src[p.pos+1:], c)
		if end < 0 {
			return a, p.fail("unterminated string for attribute %q", attrName)
		}
		inner := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		if capName, ok := strings.CutPrefix(inner, "$"); ok && captureName.MatchString(capName) {
			a.rule, a.capture = valueCaptureText, capName
		} else {
			a.rule, a.literal = valueLitString, inner
		}
	case '{':
		end, ok := newScanner(p.src).expr(p.pos, 0)
		if !ok {
			return a, p.fail("unbalanced '{' in attribute %q", attrName)
		}
		inner := strings.TrimSpace(p.src[p.pos+1 : end-1])
		p.pos = end
		if capName, ok := strings.CutPrefix(inner, "$"); ok && captureName.MatchString(capName) {
			a.rule, a.capture = valueCaptureExpr, capName
		} else {
			a.rule, a.literal = valueLitExpr, normalizeExpr(inner)
		}
	case '$':
		p.pos++
		capName, next := scanName(p.src, p.pos)
		if !captureName.MatchString(capName) {
			return a, p.fail("invalid capture name for attribute %q", attrName)
		}
		p.pos = next
		a.rule, a.capture = valueCaptureRaw, capName
	default:
		return a, p.fail("unsupported value for attribute %q; use \"...\", {...} or $name", attrName)
	}
	return a, nil
}

func (p *templateParser) children(t *elemTemplate) *PatternError {
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return p.fail("missing closing tag </%s>", t.name)
		}
		rest := p.rest()
		switch {
		case strings.HasPrefix(rest, "</"):
			p.pos += 2
			name, next := scanName(p.src, p.pos)
			if name != t.name {
				return p.fail("closing tag </%s> does not match <%s>", name, t.name)
			}
			p.pos = skipSpace(p.src, next)
			if p.pos >= len(p.src) || p.src[p.pos] != '>' {
				return p.fail("unterminated closing tag </%s>", name)
			}
			p.pos++
			return nil
		case strings.HasPrefix(rest, "..."):
			p.pos += 3
			if n := len(t.children); n == 0 || !t.children[n-1].gap {
				t.children = append(t.children, childTemplate{gap: true})
			}
		case rest[0] == '<':
			child, err := p.element(false)
			if err != nil {
				return err
			}
			t.children = append(t.children, childTemplate{elem: child})
		default:
			return p.fail("unexpected text in children of <%s>; use '...' or child elements", t.name)
		}
	}
}

// normalizeExpr makes expression comparison insensitive to formatting
func normalizeExpr(s string) string {
	var b strings.Builder
	pendingSpace := false
	var last byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 && isWordByte(last) && isWordByte(c) {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteByte(c)
		last = c
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return isNameChar(c) && c != '.' && c != '-' && c != ':'
}

func truncate(s string) string {
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}
