// Package patcher is the final pipeline stage. Given a refuted
// hypothesis it proposes candidate fixes, feeds each back through the
// verifier, and loops on the fresh counterexample until the contract
// holds or the iteration budget runs out. The stage is an explicit
// state machine so every transition is observable in the logs.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"securecode/internal/diff"
	"securecode/internal/llm"
	"securecode/internal/logging"
	"securecode/internal/selfcorrect"
	"securecode/internal/syntax"
	"securecode/internal/types"
	"securecode/internal/verify"
)

type state string

const (
	stateAwaitingCounterexample state = "awaiting-counterexample"
	statePatchProposed          state = "patch-proposed"
	stateVerifying              state = "verifying"
	stateDone                   state = "done"
	stateFailed                 state = "failed"
)

// Patcher drives the repair loop for one hypothesis at a time.
type Patcher struct {
	loop     *selfcorrect.Loop
	verifier *verify.Verifier
	log      *zap.Logger
}

// New builds a patcher over the model client and the verifier it loops
// against.
func New(client llm.Client, verifier *verify.Verifier) *Patcher {
	return &Patcher{
		loop:     selfcorrect.New(client),
		verifier: verifier,
		log:      logging.Get(logging.CategoryPatcher),
	}
}

// Repair runs the patch-verify loop. The hypothesis must carry a
// refuted verdict; maxIterations bounds the number of proposed patches.
// Every attempt is appended to the hypothesis history, and the returned
// outcome is terminal: patched-and-verified when the contract finally
// holds, patched-but-unverified when the budget runs out or the engine
// goes inconclusive mid-loop.
func (p *Patcher) Repair(ctx context.Context, h *types.Hypothesis, maxIterations int) (types.Outcome, error) {
	last := h.LastVerdict()
	if last == nil || last.Verdict != types.VerdictRefuted {
		return types.OutcomePending, fmt.Errorf("hypothesis at %s has no refutation to repair", h.Location)
	}
	validator, err := syntax.ForLanguage(h.Slice.Language)
	if err != nil {
		return types.OutcomePending, err
	}

	current := stateAwaitingCounterexample
	counterexample := last.Counterexample
	var rejected []string

	for iteration := 1; iteration <= maxIterations; iteration++ {
		p.transition(h, &current, stateAwaitingCounterexample, iteration)

		code, err := p.propose(ctx, h, validator, counterexample, rejected)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, llm.ErrUnavailable) {
				return types.OutcomePending, err
			}
			// Retry bound inside proposal exhausted: the refutation
			// stands and no further patch is coming.
			p.transition(h, &current, stateFailed, iteration)
			h.Failure = err.Error()
			if len(h.Patches) > 0 {
				return types.OutcomePatchedUnverified, nil
			}
			return types.OutcomeUnverifiable, nil
		}
		p.transition(h, &current, statePatchProposed, iteration)

		patch := &types.Patch{
			Code: code,
			Diff: diff.Unified(h.Location.Path, h.Location.Path, h.Slice.Code, code),
		}
		h.Patches = append(h.Patches, patch)

		p.transition(h, &current, stateVerifying, iteration)
		result, err := p.verifier.Verify(ctx, h, code)
		if err != nil {
			return types.OutcomePending, err
		}
		h.Verdicts = append(h.Verdicts, result)

		switch result.Verdict {
		case types.VerdictVerified:
			patch.Verified = true
			p.transition(h, &current, stateDone, iteration)
			return types.OutcomePatchedVerified, nil
		case types.VerdictRefuted:
			rejected = append(rejected, code)
			counterexample = result.Counterexample
		default:
			// An inconclusive check never counts as safe; stop here
			// rather than iterate on a stale counterexample.
			p.transition(h, &current, stateFailed, iteration)
			h.Failure = "patch verification was inconclusive"
			return types.OutcomePatchedUnverified, nil
		}
	}

	p.transition(h, &current, stateFailed, maxIterations)
	h.Failure = fmt.Sprintf("iteration budget of %d exhausted with the contract still refuted", maxIterations)
	return types.OutcomePatchedUnverified, nil
}

func (p *Patcher) transition(h *types.Hypothesis, current *state, next state, iteration int) {
	p.log.Debug("patcher transition",
		zap.String("location", h.Location.String()),
		zap.String("from", string(*current)),
		zap.String("to", string(next)),
		zap.Int("iteration", iteration))
	*current = next
}

// propose generates one syntactically valid candidate fix through the
// self-correction loop.
func (p *Patcher) propose(ctx context.Context, h *types.Hypothesis, validator syntax.Validator, counterexample string, rejected []string) (string, error) {
	prompts := selfcorrect.PromptFunc(func(feedback string) string {
		return buildPatchPrompt(h, counterexample, rejected, feedback)
	})
	validate := selfcorrect.ValidateFunc(func(output string) (bool, string) {
		code := llm.ExtractCode(output)
		if ok, reason := validator.Check(code); !ok {
			return false, fmt.Sprintf("patch does not parse: %s", reason)
		}
		if !strings.Contains(code, "def "+h.Slice.Function) {
			return false, fmt.Sprintf("patch must keep the function %q", h.Slice.Function)
		}
		return true, ""
	})

	raw, err := p.loop.Run(ctx, prompts, validate)
	if err != nil {
		return "", err
	}
	return llm.ExtractCode(raw), nil
}

func buildPatchPrompt(h *types.Hypothesis, counterexample string, rejected []string, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Fix the %s vulnerability in this function so the stated contract holds.

Function to fix:
%s

Contract the fix must satisfy:
%s

The verifier found this counterexample against the current code:
%s

Keep the function name and signature of %s unchanged. Respond with only
the complete fixed function in a fenced code block.`,
		h.Category, h.Slice.Code, h.Contract.Text(), counterexample, h.Slice.Function)

	for i, r := range rejected {
		fmt.Fprintf(&b, "\n\nRejected attempt %d (the verifier refuted it, do not repeat it):\n%s", i+1, r)
	}
	if feedback != "" {
		fmt.Fprintf(&b, "\n\nYour previous response was rejected: %s\nCorrect the problem and respond again.", feedback)
	}
	return b.String()
}
