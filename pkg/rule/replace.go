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

package rule

import (
	"regexp"
	"slices"
	"strings"

	"github.com/walteh/rewriterc/pkg/pattern"
	"gitlab.com/tozd/go/errors"
)

// 🔄 Replacer produces the text that replaces one accepted match.
// Implementations must be pure: same buffer and match, same output.
type Replacer interface {
	Replace(buf string, m pattern.Match) (string, error)
}

var refName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type segment struct {
	text string
	ref  string // capture name; empty for literal text
}

// 📝 Template is a replacement string with ${name} references to named
// captures. $$ writes a literal '$'.
type Template struct {
	source   string
	segments []segment
	names    []string
}

// NewTemplate parses a replacement template. Positional references such as
// $1 or ${1} are rejected.
func NewTemplate(source string) (*Template, error) {
	t := &Template{source: source}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		if c != '$' || i+1 >= len(source) {
			lit.WriteByte(c)
			continue
		}
		next := source[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i++
		case next >= '0' && next <= '9':
			return nil, errors.Errorf("template %q: positional reference $%c at offset %d; use a named capture like ${name}", source, next, i)
		case next == '{':
			end := strings.IndexByte(source[i+2:], '}')
			if end < 0 {
				return nil, errors.Errorf("template %q: unterminated ${ at offset %d", source, i)
			}
			name := source[i+2 : i+2+end]
			if name != "" && name[0] >= '0' && name[0] <= '9' {
				return nil, errors.Errorf("template %q: positional reference ${%s} at offset %d; use a named capture like ${name}", source, name, i)
			}
			if !refName.MatchString(name) {
				return nil, errors.Errorf("template %q: invalid capture name %q at offset %d", source, name, i)
			}
			flush()
			t.segments = append(t.segments, segment{ref: name})
			if !slices.Contains(t.names, name) {
				t.names = append(t.names, name)
			}
			i += end + 2
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustTemplate is NewTemplate for sources known at compile time
func MustTemplate(source string) *Template {
	t, err := NewTemplate(source)
	if err != nil {
		panic(err)
	}
	return t
}

// Names returns the capture names referenced by the template
func (t *Template) Names() []string {
	return slices.Clone(t.names)
}

func (t *Template) String() string {
	return t.source
}

func (t *Template) Replace(_ string, m pattern.Match) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.ref == "" {
			b.WriteString(seg.text)
			continue
		}
		v, ok := m.Captured[seg.ref]
		if !ok {
			return "", errors.Errorf("template references unknown capture %q", seg.ref)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Func adapts a function to a Replacer
type Func func(buf string, m pattern.Match) (string, error)

func (f Func) Replace(buf string, m pattern.Match) (string, error) {
	return f(buf, m)
}

type deleter struct{}

func (deleter) Replace(string, pattern.Match) (string, error) {
	return "", nil
}

// Delete removes the matched span
func Delete() Replacer {
	return deleter{}
}

// IsDelete reports whether r removes its matches
func IsDelete(r Replacer) bool {
	_, ok := r.(deleter)
	return ok
}
