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

	"gitlab.com/tozd/go/errors"
)

// ❌ PatternError reports a malformed pattern source
type PatternError struct {
	RuleID string
	Kind   Kind
	Source string
	// Offset into Source where the problem was found, -1 when unknown.
	Offset int
	Reason string
}

func (e *PatternError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<unbound>"
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("rule %q: malformed %s pattern at offset %d: %s", id, e.Kind, e.Offset, e.Reason)
	}
	return fmt.Sprintf("rule %q: malformed %s pattern: %s", id, e.Kind, e.Reason)
}

// WithRule returns a copy of e bound to the given rule id
func (e *PatternError) WithRule(id string) *PatternError {
	c := *e
	c.RuleID = id
	return &c
}

// AsPatternError unwraps err into a *PatternError
func AsPatternError(err error) (*PatternError, bool) {
	var perr *PatternError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func malformed(kind Kind, source string, offset int, format string, args ...any) *PatternError {
	return &PatternError{
		Kind:   kind,
		Source: source,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}
