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
	"maps"
	"strings"
)

// built-in captures of every structural match
const (
	CaptureTag      = "tag"
	CaptureAttrs    = "attrs"
	CaptureChildren = "children"
)

type structuralPattern struct {
	source string
	opts   Options
	tmpl   *elemTemplate
	err    *PatternError
}

// Structural matches markup elements by shape instead of by text. The source
// is a tag template such as
//
//	<Switch checked={$checked} onChange={$onChange} size="lg" ... />
//
// and matching walks tag names, attribute lists and nested elements, so line
// breaks and spacing between tokens do not affect the result.
func Structural(source string, opts Options) Pattern {
	p := &structuralPattern{source: source, opts: opts}
	anchor, err := validateAnchor(opts.Anchor)
	if err != nil {
		p.err = malformed(KindStructural, source, -1, "%s", err.Error())
		return p
	}
	p.opts.Anchor = anchor
	if opts.DotAll || opts.LooseWhitespace {
		// both are implied by structural matching; accept and ignore
		p.opts.DotAll, p.opts.LooseWhitespace = false, false
	}
	tmpl, perr := parseTemplate(source)
	if perr != nil {
		p.err = perr
		return p
	}
	p.tmpl = tmpl
	return p
}

func (p *structuralPattern) Kind() Kind       { return KindStructural }
func (p *structuralPattern) Source() string   { return p.source }
func (p *structuralPattern) Options() Options { return p.opts }

func (p *structuralPattern) Captures() []string {
	if p.tmpl == nil {
		return nil
	}
	names := []string{CaptureTag, CaptureAttrs}
	if p.tmpl.shape == shapePaired {
		names = append(names, CaptureChildren)
	}
	return p.tmpl.captureNames(names)
}

func (p *structuralPattern) Find(buf string) (iter.Seq[Match], error) {
	if p.err != nil {
		return nil, p.err
	}
	return func(yield func(Match) bool) {
		sc := newScanner(buf)
		pos := 0
		for pos < len(buf) {
			idx := strings.IndexByte(buf[pos:], '<')
			if idx < 0 {
				return
			}
			i := pos + idx
			m, ok := p.matchAt(sc, i)
			if !ok {
				pos = i + 1
				continue
			}
			if !yield(m) {
				return
			}
			pos = m.Span.End
		}
	}, nil
}

func (p *structuralPattern) matchAt(sc *scanner, i int) (Match, bool) {
	buf := sc.buf
	fold := p.opts.CaseInsensitive
	name, _ := scanName(buf, i+1)
	if !sameName(name, p.tmpl.name, fold) {
		return Match{}, false
	}

	var el *element
	var ok bool
	if p.tmpl.shape == shapeOpenTag {
		el, ok = sc.openTag(i, 0)
	} else {
		el, ok = sc.element(i, 0)
	}
	if !ok {
		return Match{}, false
	}

	caps := map[string]string{
		CaptureTag:   el.name,
		CaptureAttrs: strings.TrimSpace(buf[el.attrsStart:el.attrsEnd]),
	}
	if !el.selfClosing && p.tmpl.shape == shapePaired {
		caps[CaptureChildren] = buf[el.innerStart:el.innerEnd]
	}
	if !matchElement(p.tmpl, el, caps, fold) {
		return Match{}, false
	}

	span := Span{Start: el.start, End: el.end}
	if p.tmpl.shape == shapeOpenTag {
		span.End = el.openEnd
	}
	if p.opts.Anchor == AnchorWholeLine && !ownsLines(buf, span) {
		return Match{}, false
	}
	return Match{Span: span, Captured: caps}, true
}

func matchElement(t *elemTemplate, el *element, caps map[string]string, fold bool) bool {
	if !sameName(el.name, t.name, fold) {
		return false
	}
	switch t.shape {
	case shapeSelfClosing:
		if !el.selfClosing {
			return false
		}
	case shapePaired, shapeOpenTag:
		if el.selfClosing {
			return false
		}
	}

	mentioned := 0
	for _, at := range t.attrs {
		a, present := el.attr(at.name, fold)
		if at.absent {
			if present {
				return false
			}
			continue
		}
		if !present || !matchValue(at, a, caps) {
			return false
		}
		mentioned++
	}
	if !t.openAttrs && mentioned != len(el.attrs) {
		return false
	}

	if t.shape != shapePaired || t.anyChildren() {
		return true
	}
	return matchChildren(t.children, el.children, caps, fold)
}

func matchValue(at attrTemplate, a attribute, caps map[string]string) bool {
	switch at.rule {
	case valueAny:
		return true
	case valueLitString:
		return a.kind == valueString && a.inner == at.literal
	case valueLitExpr:
		return a.kind == valueExpr && normalizeExpr(a.inner) == at.literal
	case valueCaptureRaw:
		if a.kind == valueNone {
			return false
		}
		caps[at.capture] = a.raw
	case valueCaptureText:
		if a.kind != valueString {
			return false
		}
		caps[at.capture] = a.inner
	case valueCaptureExpr:
		if a.kind != valueExpr {
			return false
		}
		caps[at.capture] = a.inner
	}
	return true
}

// matchChildren matches direct child elements against a sequence of child
// templates where gap entries absorb any number of children.
func matchChildren(tmpls []childTemplate, els []*element, caps map[string]string, fold bool) bool {
	if len(tmpls) == 0 {
		return len(els) == 0
	}
	head := tmpls[0]
	if head.gap {
		for skip := 0; skip <= len(els); skip++ {
			trial := maps.Clone(caps)
			if matchChildren(tmpls[1:], els[skip:], trial, fold) {
				maps.Copy(caps, trial)
				return true
			}
		}
		return false
	}
	if len(els) == 0 {
		return false
	}
	trial := maps.Clone(caps)
	if !matchElement(head.elem, els[0], trial, fold) {
		return false
	}
	if !matchChildren(tmpls[1:], els[1:], trial, fold) {
		return false
	}
	maps.Copy(caps, trial)
	return true
}

func sameName(a, b string, fold bool) bool {
	if fold {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// ownsLines reports whether span is preceded and followed only by horizontal
// whitespace on its first and last line.
func ownsLines(buf string, span Span) bool {
	for i := span.Start - 1; i >= 0 && buf[i] != '\n'; i-- {
		if buf[i] != ' ' && buf[i] != '\t' {
			return false
		}
	}
	for i := span.End; i < len(buf) && buf[i] != '\n'; i++ {
		if buf[i] != ' ' && buf[i] != '\t' && buf[i] != '\r' {
			return false
		}
	}
	return true
}
