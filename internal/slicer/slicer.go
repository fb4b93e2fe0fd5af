// Package slicer extracts a minimal, independently parseable fragment
// around a candidate vulnerability. It binds the finding to its
// innermost enclosing function, asks the model which values carry
// taint, reduces the function to the statements that influence them,
// and synthesizes mocks for symbols the fragment cannot resolve.
package slicer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"securecode/internal/llm"
	"securecode/internal/logging"
	"securecode/internal/syntax"
	"securecode/internal/types"
)

// ErrSlicingFailed marks a hypothesis that could not be reduced to a
// verifiable fragment. The pipeline records it and moves on; it never
// aborts a run.
var ErrSlicingFailed = errors.New("slicing failed")

// Slicer produces one CodeSlice per hypothesis location.
type Slicer struct {
	client llm.Client
	log    *zap.Logger
}

// New creates a slicer backed by the given model client.
func New(client llm.Client) *Slicer {
	return &Slicer{client: client, log: logging.Get(logging.CategorySlicer)}
}

// Slice extracts the fragment enclosing loc. The same source and
// location always yield the same slice for the same model responses.
func (s *Slicer) Slice(ctx context.Context, src types.SourceUnit, loc types.Location, category types.Category) (*types.CodeSlice, error) {
	fn, err := enclosingFunction(ctx, src, loc.Line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlicingFailed, err)
	}

	validator, err := syntax.ForLanguage(src.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlicingFailed, err)
	}

	tainted, err := s.identifyTaint(ctx, fn, loc, category)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, llm.ErrUnavailable) {
			return nil, err
		}
		s.log.Warn("taint identification failed, keeping full function",
			zap.String("location", loc.String()), zap.Error(err))
		tainted = nil
	}

	code := fn.code
	if len(tainted) > 0 && src.Language == types.LangPython {
		if reduced := backwardSlice(fn.code, tainted); reduced != "" {
			if ok, _ := validator.Check(reduced); ok {
				code = reduced
			}
		}
	}

	slice := &types.CodeSlice{
		Code:     code,
		Function: fn.name,
		Language: src.Language,
	}
	if src.Language == types.LangPython {
		slice.Mocks = synthesizeMocks(code)
	}

	if ok, reason := validator.Check(slice.Assemble()); !ok {
		return nil, fmt.Errorf("%w: assembled slice does not parse: %s", ErrSlicingFailed, reason)
	}
	return slice, nil
}

type functionSpan struct {
	name string
	code string
	line int
}

// functionNodeTypes maps a grammar to its function-like node kinds.
func functionNodeTypes(lang types.Language) []string {
	switch lang {
	case types.LangPython:
		return []string{"function_definition"}
	case types.LangGo:
		return []string{"function_declaration", "method_declaration"}
	case types.LangJavaScript:
		return []string{"function_declaration", "method_definition", "arrow_function", "function_expression"}
	}
	return nil
}

func grammar(lang types.Language) (*sitter.Language, error) {
	switch lang {
	case types.LangPython:
		return python.GetLanguage(), nil
	case types.LangGo:
		return golang.GetLanguage(), nil
	case types.LangJavaScript:
		return javascript.GetLanguage(), nil
	}
	return nil, fmt.Errorf("unsupported language %q", lang)
}

// enclosingFunction parses the unit and returns the innermost
// function-like node spanning the given 1-based line.
func enclosingFunction(ctx context.Context, src types.SourceUnit, line int) (*functionSpan, error) {
	lang, err := grammar(src.Language)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, []byte(src.Code))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	kinds := functionNodeTypes(src.Language)
	row := uint32(line - 1)

	var innermost *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.StartPoint().Row > row || n.EndPoint().Row < row {
			return
		}
		for _, k := range kinds {
			if n.Type() == k {
				innermost = n
				break
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	if innermost == nil {
		return nil, fmt.Errorf("line %d is not inside a function", line)
	}

	name := "anonymous"
	if n := innermost.ChildByFieldName("name"); n != nil {
		name = n.Content([]byte(src.Code))
	}
	return &functionSpan{
		name: name,
		code: innermost.Content([]byte(src.Code)),
		line: int(innermost.StartPoint().Row) + 1,
	}, nil
}

type taintReport struct {
	Tainted []string `json:"tainted"`
}

// identifyTaint asks the model which identifiers inside the function
// carry attacker-influenced data into the flagged line.
func (s *Slicer) identifyTaint(ctx context.Context, fn *functionSpan, loc types.Location, category types.Category) ([]string, error) {
	prompt := fmt.Sprintf(`You are analyzing a suspected %s vulnerability at %s.

Function under analysis:
%s

List the identifiers (variables and parameters) whose values flow into
the vulnerable statement. Respond with a JSON object only:
{"tainted": ["name", ...]}`,
		category, loc.String(), fn.code)

	raw, err := s.client.Generate(ctx, prompt, llm.DefaultOptions())
	if err != nil {
		return nil, err
	}

	var report taintReport
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &report); err != nil {
		return nil, fmt.Errorf("taint response is not valid JSON: %w", err)
	}

	seen := make(map[string]bool, len(report.Tainted))
	var out []string
	for _, name := range report.Tainted {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// backwardSlice keeps the statements of a Python function that mention
// a tainted identifier, plus the signature, block headers above kept
// lines, and return statements. The result may not parse when a block
// loses its whole body; the caller checks and falls back to the full
// function.
func backwardSlice(code string, tainted []string) string {
	lines := strings.Split(code, "\n")
	keep := make([]bool, len(lines))

	patterns := make([]*regexp.Regexp, 0, len(tainted))
	for _, name := range tainted {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(name)+`\b`))
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case i == 0, strings.HasPrefix(trimmed, "def "), strings.HasPrefix(trimmed, "@"):
			keep[i] = true
		case strings.HasPrefix(trimmed, "return"), strings.HasPrefix(trimmed, "raise"):
			keep[i] = true
		default:
			for _, p := range patterns {
				if p.MatchString(line) {
					keep[i] = true
					break
				}
			}
		}
	}

	// Pull in the block headers governing each kept line so control
	// structure survives the reduction.
	for i := range lines {
		if !keep[i] {
			continue
		}
		level := indentOf(lines[i])
		for j := i - 1; j >= 0 && level > 0; j-- {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			if ind := indentOf(lines[j]); ind < level && strings.HasSuffix(trimmed, ":") {
				keep[j] = true
				level = ind
			}
		}
	}

	var b strings.Builder
	kept := 0
	for i, line := range lines {
		if keep[i] || strings.TrimSpace(line) == "" {
			b.WriteString(line)
			b.WriteString("\n")
			if keep[i] {
				kept++
			}
		}
	}
	if kept <= 1 {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

var callPattern = regexp.MustCompile(`(^|[^\w.])([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// pythonBuiltins are call targets that never need a mock.
var pythonBuiltins = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "bytes": true,
	"dict": true, "enumerate": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "hasattr": true,
	"hash": true, "hex": true, "int": true, "isinstance": true,
	"issubclass": true, "iter": true, "len": true, "list": true,
	"map": true, "max": true, "min": true, "next": true, "open": true,
	"ord": true, "print": true, "range": true, "repr": true,
	"reversed": true, "round": true, "set": true, "setattr": true,
	"sorted": true, "str": true, "sum": true, "super": true,
	"tuple": true, "type": true, "zip": true,
	// Keywords the call pattern can still catch.
	"if": true, "elif": true, "while": true, "for": true, "return": true,
	"and": true, "or": true, "not": true, "in": true, "assert": true,
	"lambda": true, "yield": true, "raise": true, "except": true,
	"with": true, "del": true, "def": true, "class": true,
}

// synthesizeMocks builds inert stand-ins for unresolved call targets so
// the slice parses and executes on its own. Mocks accept any arity and
// return None; they never reproduce real behavior.
func synthesizeMocks(code string) []types.Mock {
	defined := make(map[string]bool)
	for _, m := range regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)`).FindAllStringSubmatch(code, -1) {
		defined[m[1]] = true
	}

	seen := make(map[string]bool)
	var names []string
	for _, m := range callPattern.FindAllStringSubmatch(code, -1) {
		name := m[2]
		if defined[name] || pythonBuiltins[name] || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	mocks := make([]types.Mock, 0, len(names))
	for _, name := range names {
		mocks = append(mocks, types.Mock{
			Symbol: name,
			Code:   fmt.Sprintf("def %s(*args, **kwargs):\n    return None\n", name),
		})
	}
	return mocks
}
