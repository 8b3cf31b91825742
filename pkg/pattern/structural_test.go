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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const switchSource = `<div>
  <Switch
    checked={holeInOne}
    onChange={(e) => setHoleInOne(e.target.checked)}
    size="lg"
  />
</div>`

func TestStructural_ReformattedSourceStillMatches(t *testing.T) {
	p := Structural(`<Switch checked={$checked} onChange={$onChange} size="lg" />`, Options{})

	matches, err := Collect(p, switchSource)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	start := strings.Index(switchSource, "<Switch")
	end := strings.Index(switchSource, "/>") + 2
	assert.Equal(t, Span{start, end}, matches[0].Span)
	assert.Equal(t, "holeInOne", matches[0].Captured["checked"])
	assert.Equal(t, "(e) => setHoleInOne(e.target.checked)", matches[0].Captured["onChange"])
	assert.Equal(t, "Switch", matches[0].Captured[CaptureTag])

	oneLine := `<Switch checked={holeInOne} onChange={(e) => setHoleInOne(e.target.checked)} size="lg"/>`
	again, err := Collect(p, oneLine)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, Span{0, len(oneLine)}, again[0].Span)
}

func TestStructural_Find(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		opts      Options
		buf       string
		wantSpans []Span
		wantCaps  map[string]string
	}{
		{
			name:      "open_tag_template",
			template:  `<Alert variant="danger">`,
			buf:       `<Alert variant="danger">Error</Alert>`,
			wantSpans: []Span{{0, 24}},
			wantCaps:  map[string]string{CaptureTag: "Alert", CaptureAttrs: `variant="danger"`},
		},
		{
			name:      "open_tag_template_ignores_self_closing",
			template:  `<Alert variant="danger">`,
			buf:       `<Alert variant="danger" />`,
			wantSpans: []Span{},
		},
		{
			name:      "string_value_must_equal",
			template:  `<Alert variant="danger">`,
			buf:       `<Alert variant="warning">Careful</Alert>`,
			wantSpans: []Span{},
		},
		{
			name:      "extra_attribute_rejected_without_ellipsis",
			template:  `<Switch checked={$c} size="lg" />`,
			buf:       `<Switch checked={a} size="lg" disabled />`,
			wantSpans: []Span{},
		},
		{
			name:      "extra_attribute_accepted_with_ellipsis",
			template:  `<Switch checked={$c} size="lg" ... />`,
			buf:       `<Switch disabled checked={a} size="lg" />`,
			wantSpans: []Span{{0, 41}},
			wantCaps:  map[string]string{"c": "a"},
		},
		{
			name:      "absent_attribute",
			template:  `<Input !disabled as="textarea" ... />`,
			buf:       `<Input as="textarea" disabled /><Input as="textarea" rows={3} />`,
			wantSpans: []Span{{32, 64}},
		},
		{
			name:      "raw_value_capture",
			template:  `<Badge variant=$v />`,
			buf:       `<Badge variant="danger" />`,
			wantSpans: []Span{{0, 26}},
			wantCaps:  map[string]string{"v": `"danger"`},
		},
		{
			name:      "string_contents_capture",
			template:  `<Badge variant="$v" />`,
			buf:       `<Badge variant='danger'/>`,
			wantSpans: []Span{{0, 25}},
			wantCaps:  map[string]string{"v": "danger"},
		},
		{
			name:      "expression_literal_ignores_formatting",
			template:  `<X on={ a  +  b } />`,
			buf:       `<X on={a+b}/>`,
			wantSpans: []Span{{0, 13}},
		},
		{
			name:      "nested_braces_and_strings_in_expression",
			template:  `<Button onClick={$fn} label="x" />`,
			buf:       `<Button onClick={() => { if (a) { go("}") } }} label="x" />`,
			wantSpans: []Span{{0, 59}},
			wantCaps:  map[string]string{"fn": `() => { if (a) { go("}") } }`},
		},
		{
			name:      "children_subsequence_with_gap",
			template:  `<Select ...>...<Option value="b" ... /></Select>`,
			buf:       `<Select value={v}><Option value="a" /><Option value="b" /></Select>`,
			wantSpans: []Span{{0, 67}},
		},
		{
			name:      "children_exact_sequence",
			template:  `<Select ...><Option ... /></Select>`,
			buf:       `<Select value={v}><Option value="a" /><Option value="b" /></Select>`,
			wantSpans: []Span{},
		},
		{
			name:      "children_capture",
			template:  `<Label>...</Label>`,
			buf:       `<Label>Hello <b>you</b></Label>`,
			wantSpans: []Span{{0, 31}},
			wantCaps:  map[string]string{CaptureChildren: "Hello <b>you</b>"},
		},
		{
			name:      "consumed_region_not_rematched",
			template:  `<Box>...</Box>`,
			buf:       `<Box><Box></Box></Box>`,
			wantSpans: []Span{{0, 22}},
		},
		{
			name:      "text_with_apostrophe_in_children",
			template:  `<P>...</P>`,
			buf:       `<P>Don't {x ? <b>it's</b> : null}</P>`,
			wantSpans: []Span{{0, 37}},
		},
		{
			name:      "case_insensitive_tag",
			template:  `<Alert variant="danger">`,
			opts:      Options{CaseInsensitive: true},
			buf:       `<alert variant="danger">x</alert>`,
			wantSpans: []Span{{0, 24}},
		},
		{
			name:      "case_sensitive_tag_by_default",
			template:  `<Alert variant="danger">`,
			buf:       `<alert variant="danger">x</alert>`,
			wantSpans: []Span{},
		},
		{
			name:      "whole_line_anchor",
			template:  `<Foo />`,
			opts:      Options{Anchor: AnchorWholeLine},
			buf:       "  <Foo />\nx <Foo />\n",
			wantSpans: []Span{{2, 9}},
		},
		{
			name:      "prefix_tag_names_do_not_match",
			template:  `<Alert>`,
			buf:       `<AlertDialog>x</AlertDialog>`,
			wantSpans: []Span{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Structural(tt.template, tt.opts)
			matches, err := Collect(p, tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSpans, spans(matches))
			for k, v := range tt.wantCaps {
				require.NotEmpty(t, matches)
				assert.Equal(t, v, matches[0].Captured[k], "capture %q", k)
			}
		})
	}
}

func TestElementScan_UnclosedTagsStayFast(t *testing.T) {
	const n = 40
	tests := []struct {
		name      string
		pattern   Pattern
		buf       string
		wantSpans []Span
	}{
		{
			name:      "unclosed_children",
			pattern:   Structural(`<Alert>...</Alert>`, Options{}),
			buf:       "<Alert>" + strings.Repeat("<b>", n) + "</Alert>",
			wantSpans: []Span{{0, 7 + 3*n + 8}},
		},
		{
			name:      "generics_inside_expressions",
			pattern:   Structural(`<Alert>...</Alert>`, Options{}),
			buf:       "<Alert>{" + strings.Repeat("useState<string>(x); ", n) + "}</Alert>",
			wantSpans: []Span{{0, 7 + 1 + 21*n + 1 + 8}},
		},
		{
			name:      "whole_element_anchor",
			pattern:   Literal("<Alert>", Options{Anchor: AnchorWholeElement}),
			buf:       "<Alert>" + strings.Repeat("<Array<Foo>", n),
			wantSpans: []Span{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			matches, err := Collect(tt.pattern, tt.buf)
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 2*time.Second, "scan should not blow up on unclosed tags")

			spans := []Span{}
			for _, m := range matches {
				spans = append(spans, m.Span)
			}
			assert.Equal(t, tt.wantSpans, spans)
		})
	}
}

func TestStructural_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "empty", template: "   ", want: "template is empty"},
		{name: "no_open_bracket", template: `Switch />`, want: "expected '<'"},
		{name: "missing_tag_name", template: `< />`, want: "missing tag name"},
		{name: "unbalanced_brace", template: `<Switch checked={x />`, want: "unbalanced '{'"},
		{name: "unterminated_string", template: `<A size="lg />`, want: "unterminated string"},
		{name: "unterminated_tag", template: `<A size="lg"`, want: "unterminated tag"},
		{name: "missing_closing_tag", template: `<A><B/>`, want: "missing closing tag </A>"},
		{name: "mismatched_closing_tag", template: `<A></B>`, want: "does not match <A>"},
		{name: "text_in_children", template: `<A>hello</A>`, want: "unexpected text in children"},
		{name: "trailing_text", template: `<A /> tail`, want: "unexpected text after element"},
		{name: "bad_capture", template: `<A v=$ />`, want: "invalid capture name"},
		{name: "bad_value", template: `<A v=3 />`, want: "unsupported value"},
		{name: "unknown_anchor", template: `<A />`, want: "unknown anchor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{}
			if tt.name == "unknown_anchor" {
				opts.Anchor = "diagonal"
			}
			p := Structural(tt.template, opts)
			err := Check(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			perr, ok := AsPatternError(err)
			require.True(t, ok)
			assert.Equal(t, KindStructural, perr.Kind)
			assert.Nil(t, p.Captures())
		})
	}
}

func TestStructural_Captures(t *testing.T) {
	p := Structural(`<Select value={$value} ...><Option label="$first" ... />...</Select>`, Options{})
	require.NoError(t, Check(p))
	assert.ElementsMatch(t, []string{CaptureTag, CaptureAttrs, CaptureChildren, "value", "first"}, p.Captures())

	self := Structural(`<Switch checked={$checked} />`, Options{})
	assert.ElementsMatch(t, []string{CaptureTag, CaptureAttrs, "checked"}, self.Captures())
}
