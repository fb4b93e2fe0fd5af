// Package syntax validates that generated artifacts parse as source code.
// It is the gate inside the self-correction loop and the last step of
// slicing: nothing reaches the symbolic-execution engine without passing
// a Check.
package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"securecode/internal/types"
)

// Validator checks whether a text artifact parses as valid source.
type Validator interface {
	// Check returns (true, "") for valid input, or (false, reason).
	Check(text string) (bool, string)
}

// TreeSitterValidator validates source with a tree-sitter grammar.
type TreeSitterValidator struct {
	lang *sitter.Language
	name types.Language
}

// ForLanguage returns a validator for the declared language of a source
// unit, or an error for languages without a grammar.
func ForLanguage(lang types.Language) (*TreeSitterValidator, error) {
	switch lang {
	case types.LangPython:
		return &TreeSitterValidator{lang: python.GetLanguage(), name: lang}, nil
	case types.LangGo:
		return &TreeSitterValidator{lang: golang.GetLanguage(), name: lang}, nil
	case types.LangJavaScript:
		return &TreeSitterValidator{lang: javascript.GetLanguage(), name: lang}, nil
	}
	return nil, fmt.Errorf("syntax: unsupported language %q", lang)
}

// Supported reports whether a grammar exists for the language.
func Supported(lang types.Language) bool {
	_, err := ForLanguage(lang)
	return err == nil
}

// Check parses the text and reports the first syntax error found.
func (v *TreeSitterValidator) Check(text string) (bool, string) {
	if len(text) == 0 {
		return false, "empty input"
	}

	parser := sitter.NewParser()
	parser.SetLanguage(v.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(text))
	if err != nil {
		return false, fmt.Sprintf("parse failed: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return true, ""
	}

	if node := firstErrorNode(root); node != nil {
		point := node.StartPoint()
		return false, fmt.Sprintf("syntax error at line %d, column %d", point.Row+1, point.Column+1)
	}
	return false, "syntax error"
}

// firstErrorNode walks the tree depth-first for the first ERROR or
// missing node.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return n
}
