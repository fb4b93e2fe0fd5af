// Package pipeline owns the end-to-end run: scan once, then fan out
// per hypothesis through speculation, verification and repair. Each
// hypothesis succeeds or fails on its own; only cancellation or an
// unreachable collaborator aborts the run, and even then the partial
// state is returned with untouched hypotheses explicitly marked.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"securecode/internal/llm"
	"securecode/internal/logging"
	"securecode/internal/patcher"
	"securecode/internal/scanner"
	"securecode/internal/selfcorrect"
	"securecode/internal/speculate"
	"securecode/internal/types"
	"securecode/internal/verify"
)

// Orchestrator wires the four stages into one run loop.
type Orchestrator struct {
	scanner    *scanner.Scanner
	speculator *speculate.Speculator
	verifier   *verify.Verifier
	patcher    *patcher.Patcher
	log        *zap.Logger
}

// New assembles an orchestrator from already-constructed stages.
func New(sc *scanner.Scanner, sp *speculate.Speculator, v *verify.Verifier, p *patcher.Patcher) *Orchestrator {
	return &Orchestrator{
		scanner:    sc,
		speculator: sp,
		verifier:   v,
		patcher:    p,
		log:        logging.Get(logging.CategoryPipeline),
	}
}

// Analyze runs the full pipeline over one source unit. The returned
// state is always non-nil and fully tagged: every hypothesis carries a
// terminal outcome, including not-processed when a fatal error cut the
// run short. The error is non-nil only for run-fatal conditions.
func (o *Orchestrator) Analyze(ctx context.Context, src types.SourceUnit, budgets types.Budgets) (*types.PipelineState, error) {
	start := time.Now()
	state := types.NewPipelineState(src, budgets)
	budgets = state.Budgets

	o.log.Info("analysis started",
		zap.String("analysis_id", state.AnalysisID),
		zap.String("path", src.Path),
		zap.String("language", string(src.Language)))

	hypotheses, err := o.scanner.Scan(ctx, src)
	if err != nil {
		state.Errorf("scan failed: %v", err)
		state.Elapsed = time.Since(start)
		return state, err
	}
	state.Hypotheses = hypotheses
	state.Logf("scan produced %d hypotheses", len(hypotheses))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(budgets.Workers)
	for _, h := range hypotheses {
		if h.Outcome != types.OutcomePending {
			continue
		}
		h := h
		g.Go(func() error {
			return o.process(groupCtx, h, budgets)
		})
	}

	runErr := g.Wait()
	state.Elapsed = time.Since(start)

	if runErr != nil {
		for _, h := range state.Hypotheses {
			if h.Outcome == types.OutcomePending {
				h.Outcome = types.OutcomeNotProcessed
			}
		}
		state.Errorf("run aborted: %v", runErr)
		o.log.Error("analysis aborted",
			zap.String("analysis_id", state.AnalysisID), zap.Error(runErr))
		return state, runErr
	}

	state.Complete = true
	o.log.Info("analysis complete",
		zap.String("analysis_id", state.AnalysisID),
		zap.Duration("elapsed", state.Elapsed),
		zap.Int("hypotheses", len(state.Hypotheses)))
	return state, nil
}

// process takes one hypothesis from sliced to terminal. Per-hypothesis
// failures are recorded on the hypothesis and return nil; only
// cancellation and an unreachable model propagate and cancel siblings.
func (o *Orchestrator) process(ctx context.Context, h *types.Hypothesis, budgets types.Budgets) error {
	// The verification artifact and the exec engine are Python;
	// hypotheses in other languages stop after detection and slicing.
	if h.Slice != nil && !h.Slice.Language.Verifiable() {
		h.Outcome = types.OutcomeUnverifiable
		h.Failure = fmt.Sprintf("symbolic verification supports python sources only, not %s", h.Slice.Language)
		return nil
	}

	contract, err := o.speculator.Speculate(ctx, h)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		if errors.Is(err, selfcorrect.ErrExhaustedRetries) {
			h.Outcome = types.OutcomeUnverifiable
			h.Failure = err.Error()
			return nil
		}
		h.Outcome = types.OutcomeUnverifiable
		h.Failure = "speculation failed: " + err.Error()
		return nil
	}
	h.Contract = contract

	result, err := o.verifier.Verify(ctx, h, h.Slice.Code)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		h.Outcome = types.OutcomeUnverifiable
		h.Failure = "verification failed: " + err.Error()
		return nil
	}
	h.Verdicts = append(h.Verdicts, result)

	switch result.Verdict {
	case types.VerdictVerified:
		// The contract already holds on the original code.
		h.Outcome = types.OutcomeNotVulnerable
		return nil
	case types.VerdictInconclusive:
		h.Outcome = types.OutcomeInconclusive
		h.Failure = result.Detail
		return nil
	}

	outcome, err := o.patcher.Repair(ctx, h, budgets.MaxIterations)
	if err != nil {
		if fatal(ctx, err) {
			return err
		}
		h.Outcome = types.OutcomeUnverifiable
		h.Failure = "repair failed: " + err.Error()
		return nil
	}
	h.Outcome = outcome
	return nil
}

// fatal reports whether an error must abort the whole run.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, llm.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
