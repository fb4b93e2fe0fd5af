package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"securecode/internal/logging"
	"securecode/internal/types"
)

// artifactHeader carries the imports every assembled artifact may need.
const artifactHeader = `import os
import re
import icontract
from urllib.parse import urlparse
`

// Verifier assembles artifacts and invokes the engine under the run's
// verification timeout.
type Verifier struct {
	engine     Engine
	timeout    time.Duration
	exhaustive bool
	log        *zap.Logger
}

// New builds a verifier. exhaustive declares whether the configured
// engine's clean runs constitute a sound proof; engines searching under
// a budget must leave it false.
func New(engine Engine, timeout time.Duration, exhaustive bool) *Verifier {
	return &Verifier{
		engine:     engine,
		timeout:    timeout,
		exhaustive: exhaustive,
		log:        logging.Get(logging.CategoryVerifier),
	}
}

// Verify checks code against the hypothesis contract. code is the
// candidate under test: the original slice on the first call, a patch
// on later ones. Every invocation produces a fresh result; a timeout is
// reported as inconclusive, not as an error.
func (v *Verifier) Verify(ctx context.Context, h *types.Hypothesis, code string) (*types.VerificationResult, error) {
	if h.Contract == nil {
		return nil, fmt.Errorf("hypothesis at %s has no contract", h.Location)
	}

	artifact, err := assembleArtifact(h, code)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	outcome, err := v.engine.Verify(runCtx, artifact)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	// Engines map any context expiry to inconclusive; only the parent
	// tells the per-call timeout apart from run cancellation.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &types.VerificationResult{
		Verdict:        outcome.Verdict,
		Counterexample: outcome.Counterexample,
		Detail:         outcome.Detail,
		Elapsed:        elapsed,
		Exhaustive:     v.exhaustive && outcome.Verdict == types.VerdictVerified,
	}
	v.log.Info("verification finished",
		zap.String("location", h.Location.String()),
		zap.String("verdict", string(result.Verdict)),
		zap.Duration("elapsed", elapsed))
	return result, nil
}

// assembleArtifact builds the runnable check: imports, mocks, then the
// candidate code with the contract decorators attached to the target
// function definition.
func assembleArtifact(h *types.Hypothesis, code string) (string, error) {
	var b strings.Builder
	b.WriteString(artifactHeader)
	b.WriteString("\n")
	for _, m := range h.Slice.Mocks {
		b.WriteString(m.Code)
		b.WriteString("\n")
	}

	decorated, err := attachContract(code, h.Slice.Function, h.Contract)
	if err != nil {
		return "", err
	}
	b.WriteString(decorated)
	b.WriteString("\n")
	return b.String(), nil
}

// attachContract inserts the contract decorators immediately above the
// target function definition, matching its indentation.
func attachContract(code, function string, contract *types.Contract) (string, error) {
	lines := strings.Split(code, "\n")
	prefix := "def " + function
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		var decorated []string
		decorated = append(decorated, lines[:i]...)
		for _, p := range contract.Predicates {
			decorated = append(decorated, indent+p)
		}
		decorated = append(decorated, lines[i:]...)
		return strings.Join(decorated, "\n"), nil
	}
	return "", fmt.Errorf("target function %q not found in candidate code", function)
}
