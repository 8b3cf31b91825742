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

package verify

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"gitlab.com/tozd/go/errors"
)

// grammarFor picks a tree-sitter grammar from the file extension, nil when
// the extension is not supported
func grammarFor(fileID string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(fileID)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".go":
		return golang.GetLanguage()
	default:
		return nil
	}
}

// syntaxFault is the first ERROR or MISSING node of a parse
type syntaxFault struct {
	line    int
	column  int
	missing string
	near    string
}

// firstFault parses src and returns its first syntax fault, or nil when the
// tree is clean. The tree is discarded before returning.
func firstFault(ctx context.Context, lang *sitter.Language, src string) (*syntaxFault, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	content := []byte(src)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, errors.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}
	return findFault(root, content, 0), nil
}

func findFault(node *sitter.Node, content []byte, depth int) *syntaxFault {
	if depth > 1000 {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		p := node.StartPoint()
		f := &syntaxFault{line: int(p.Row) + 1, column: int(p.Column) + 1}
		if node.IsMissing() {
			f.missing = node.Type()
			return f
		}
		start, end := node.StartByte(), min(node.EndByte(), uint32(len(content)))
		near := string(content[start:end])
		if len(near) > 40 {
			near = near[:40] + "..."
		}
		f.near = near
		return f
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if f := findFault(node.Child(i), content, depth+1); f != nil {
			return f
		}
	}
	// no ERROR or MISSING node reached; report the root
	if depth == 0 {
		p := node.StartPoint()
		return &syntaxFault{line: int(p.Row) + 1, column: int(p.Column) + 1}
	}
	return nil
}
