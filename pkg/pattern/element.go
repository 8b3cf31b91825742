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

import "strings"

// maxDepth bounds element and expression nesting while scanning
const maxDepth = 200

type valueKind int

const (
	valueNone valueKind = iota
	valueString
	valueExpr
)

// attribute is one entry of an element's attribute list. Spread attributes
// ({...props}) have an empty name.
type attribute struct {
	name  string
	kind  valueKind
	raw   string // value as written, including quotes or braces
	inner string // value without delimiters
}

// element is the syntactic shape of one markup element found in a buffer
type element struct {
	name        string
	start       int
	openEnd     int // index just past the '>' or '/>' of the opening tag
	end         int
	attrsStart  int
	attrsEnd    int
	attrs       []attribute
	selfClosing bool
	innerStart  int
	innerEnd    int
	children    []*element
}

func (e *element) attr(name string, fold bool) (attribute, bool) {
	for _, a := range e.attrs {
		if a.name == "" {
			continue
		}
		if a.name == name || (fold && strings.EqualFold(a.name, name)) {
			return a, true
		}
	}
	return attribute{}, false
}

func isNameStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == ':'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(buf string, i int) int {
	for i < len(buf) && isSpace(buf[i]) {
		i++
	}
	return i
}

func scanName(buf string, i int) (string, int) {
	if i >= len(buf) || !isNameStart(buf[i]) {
		return "", i
	}
	j := i + 1
	for j < len(buf) && isNameChar(buf[j]) {
		j++
	}
	return buf[i:j], j
}

// scanner parses elements and expressions of one buffer. Results are
// remembered per start offset, so an unclosed tag nested n levels deep is
// scanned once instead of once per enclosing element.
type scanner struct {
	buf      string
	elements map[int]*element // nil value: no element starts there
	exprs    map[int]int      // -1: unbalanced
}

func newScanner(buf string) *scanner {
	return &scanner{buf: buf, elements: map[int]*element{}, exprs: map[int]int{}}
}

// openTag parses the opening tag starting at buf[i] == '<'
func (s *scanner) openTag(i int, depth int) (*element, bool) {
	buf := s.buf
	if i >= len(buf) || buf[i] != '<' || depth > maxDepth {
		return nil, false
	}
	name, j := scanName(buf, i+1)
	if name == "" {
		return nil, false
	}
	el := &element{name: name, start: i, attrsStart: j}
	for {
		j = skipSpace(buf, j)
		if j >= len(buf) {
			return nil, false
		}
		switch c := buf[j]; {
		case c == '/' && j+1 < len(buf) && buf[j+1] == '>':
			el.attrsEnd = j
			el.selfClosing = true
			el.openEnd = j + 2
			el.end = j + 2
			return el, true
		case c == '>':
			el.attrsEnd = j
			el.openEnd = j + 1
			return el, true
		case c == '{':
			end, ok := s.expr(j, depth+1)
			if !ok {
				return nil, false
			}
			el.attrs = append(el.attrs, attribute{kind: valueExpr, raw: buf[j:end], inner: buf[j+1 : end-1]})
			j = end
		case isNameStart(c):
			attrName, k := scanName(buf, j)
			a := attribute{name: attrName}
			k2 := skipSpace(buf, k)
			if k2 < len(buf) && buf[k2] == '=' {
				v := skipSpace(buf, k2+1)
				if v >= len(buf) {
					return nil, false
				}
				switch buf[v] {
				case '"', '\'':
					q := strings.IndexByte(buf[v+1:], buf[v])
					if q < 0 {
						return nil, false
					}
					a.kind = valueString
					a.raw = buf[v : v+q+2]
					a.inner = buf[v+1 : v+1+q]
					k = v + q + 2
				case '{':
					end, ok := s.expr(v, depth+1)
					if !ok {
						return nil, false
					}
					a.kind = valueExpr
					a.raw = buf[v:end]
					a.inner = buf[v+1 : end-1]
					k = end
				default:
					return nil, false
				}
			}
			el.attrs = append(el.attrs, a)
			j = k
		default:
			return nil, false
		}
	}
}

// element parses a complete element (opening tag, children and closing
// tag) starting at buf[i] == '<'.
func (s *scanner) element(i int, depth int) (*element, bool) {
	if el, seen := s.elements[i]; seen {
		return el, el != nil
	}
	el, ok := s.scanElement(i, depth)
	if depth <= maxDepth {
		s.elements[i] = el
	}
	return el, ok
}

func (s *scanner) scanElement(i int, depth int) (*element, bool) {
	buf := s.buf
	el, ok := s.openTag(i, depth)
	if !ok {
		return nil, false
	}
	if el.selfClosing {
		return el, true
	}
	el.innerStart = el.openEnd
	j := el.openEnd
	for j < len(buf) {
		switch buf[j] {
		case '{':
			end, ok := s.expr(j, depth+1)
			if !ok {
				return nil, false
			}
			j = end
		case '<':
			if j+1 < len(buf) && buf[j+1] == '/' {
				name, k := scanName(buf, j+2)
				k = skipSpace(buf, k)
				if k >= len(buf) || buf[k] != '>' {
					return nil, false
				}
				if name == "" {
					// closing fragment </>; fragments are transparent
					j = k + 1
					continue
				}
				if name != el.name {
					return nil, false
				}
				el.innerEnd = j
				el.end = k + 1
				return el, true
			}
			if child, ok := s.element(j, depth+1); ok {
				el.children = append(el.children, child)
				j = child.end
				continue
			}
			j++
		default:
			j++
		}
	}
	return nil, false
}

// expr skips a balanced {...} expression starting at buf[i] == '{' and
// returns the index just past the closing brace. Strings, template literals,
// comments and embedded elements are stepped over so braces inside them do
// not count.
func (s *scanner) expr(i int, depth int) (int, bool) {
	if end, seen := s.exprs[i]; seen {
		return end, end >= 0
	}
	if depth > maxDepth {
		return 0, false
	}
	end, ok := s.scanExpr(i, depth)
	if !ok {
		end = -1
	}
	s.exprs[i] = end
	return end, ok
}

func (s *scanner) scanExpr(i int, depth int) (int, bool) {
	buf := s.buf
	level := 0
	j := i
	for j < len(buf) {
		c := buf[j]
		switch {
		case c == '{':
			level++
			j++
		case c == '}':
			level--
			j++
			if level == 0 {
				return j, true
			}
		case c == '"' || c == '\'':
			end, ok := skipQuoted(buf, j)
			if !ok {
				return 0, false
			}
			j = end
		case c == '`':
			end, ok := s.templateLiteral(j, depth+1)
			if !ok {
				return 0, false
			}
			j = end
		case c == '/' && j+1 < len(buf) && buf[j+1] == '/':
			nl := strings.IndexByte(buf[j:], '\n')
			if nl < 0 {
				return 0, false
			}
			j += nl + 1
		case c == '/' && j+1 < len(buf) && buf[j+1] == '*':
			end := strings.Index(buf[j+2:], "*/")
			if end < 0 {
				return 0, false
			}
			j += end + 4
		case c == '<' && j+1 < len(buf) && isNameStart(buf[j+1]):
			if el, ok := s.element(j, depth+1); ok {
				j = el.end
				continue
			}
			j++
		default:
			j++
		}
	}
	return 0, false
}

func skipQuoted(buf string, i int) (int, bool) {
	q := buf[i]
	for j := i + 1; j < len(buf); j++ {
		switch buf[j] {
		case '\\':
			j++
		case q:
			return j + 1, true
		case '\n':
			return 0, false
		}
	}
	return 0, false
}

func (s *scanner) templateLiteral(i int, depth int) (int, bool) {
	buf := s.buf
	for j := i + 1; j < len(buf); j++ {
		switch buf[j] {
		case '\\':
			j++
		case '`':
			return j + 1, true
		case '$':
			if j+1 < len(buf) && buf[j+1] == '{' {
				end, ok := s.expr(j+1, depth+1)
				if !ok {
					return 0, false
				}
				j = end - 1
			}
		}
	}
	return 0, false
}
