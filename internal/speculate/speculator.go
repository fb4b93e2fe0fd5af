// Package speculate is the second pipeline stage. Given a sliced
// hypothesis it drafts a formal contract: executable pre/post-condition
// predicates that make the suspected flaw checkable by the verifier.
// Drafting runs inside the shared self-correction loop so malformed
// contracts are retried with concrete failure feedback.
package speculate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"securecode/internal/llm"
	"securecode/internal/logging"
	"securecode/internal/selfcorrect"
	"securecode/internal/syntax"
	"securecode/internal/types"
)

// Speculator drafts contracts for sliced hypotheses.
type Speculator struct {
	loop    *selfcorrect.Loop
	catalog *Catalog
	log     *zap.Logger
}

// New builds a speculator over the given client and guidance catalog.
func New(client llm.Client, catalog *Catalog) *Speculator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Speculator{
		loop:    selfcorrect.New(client),
		catalog: catalog,
		log:     logging.Get(logging.CategorySpeculate),
	}
}

// Speculate drafts the contract for one hypothesis. Exhausting the
// retry bound returns the loop's ExhaustedError; the caller maps that
// to the unverifiable outcome.
func (s *Speculator) Speculate(ctx context.Context, h *types.Hypothesis) (*types.Contract, error) {
	if h.Slice == nil {
		return nil, fmt.Errorf("hypothesis at %s has no slice", h.Location)
	}
	guidance := s.catalog.Lookup(h.Category)
	// Contracts are icontract decorator lines, so they parse as Python
	// whatever language the slice is in.
	validator, err := syntax.ForLanguage(types.LangPython)
	if err != nil {
		return nil, err
	}

	prompts := selfcorrect.PromptFunc(func(feedback string) string {
		return buildPrompt(h, guidance, feedback)
	})
	validate := selfcorrect.ValidateFunc(func(output string) (bool, string) {
		_, reason := parsePredicates(output, validator)
		if reason != "" {
			return false, reason
		}
		return true, ""
	})

	raw, err := s.loop.Run(ctx, prompts, validate)
	if err != nil {
		return nil, err
	}

	predicates, _ := parsePredicates(raw, validator)
	s.log.Debug("contract drafted",
		zap.String("location", h.Location.String()),
		zap.Int("predicates", len(predicates)))
	return &types.Contract{
		Predicates:     predicates,
		TargetFunction: h.Slice.Function,
		Category:       h.Category,
	}, nil
}

func buildPrompt(h *types.Hypothesis, guidance Guidance, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write icontract decorators expressing the safety property a fix for
this %s finding must satisfy.

Property to capture: %s

Example of the expected form:
%s

Finding: %s at %s
Target function: %s

Code under analysis:
%s

Respond with only the decorator lines, one per line, inside a fenced
code block. Each line must start with @icontract and be a complete,
syntactically valid Python expression.`,
		h.Category, guidance.Property, guidance.Example,
		h.Rationale, h.Location.String(), h.Slice.Function, h.Slice.Code)
	if feedback != "" {
		fmt.Fprintf(&b, "\n\nYour previous attempt was rejected: %s\nCorrect the problem and respond again.", feedback)
	}
	return b.String()
}

// parsePredicates extracts the decorator lines from a model response
// and checks them. The second return is empty on success, or the
// rejection reason fed back into the retry loop.
func parsePredicates(output string, validator syntax.Validator) ([]string, string) {
	code := llm.ExtractCode(output)
	var predicates []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "@icontract") {
			predicates = append(predicates, line)
		}
	}
	if len(predicates) == 0 {
		return nil, "no @icontract decorator lines found in the response"
	}

	// Decorators only parse attached to a definition, so check them
	// wrapped around a stub.
	stub := strings.Join(predicates, "\n") + "\ndef _stub(*args, **kwargs):\n    pass\n"
	if ok, reason := validator.Check(stub); !ok {
		return nil, fmt.Sprintf("contract does not parse: %s", reason)
	}
	return predicates, ""
}
