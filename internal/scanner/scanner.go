// Package scanner is the first pipeline stage. It runs the pattern
// detector over the source unit, triages each raw hit with the model to
// suppress obvious false positives, and slices the survivors into
// verifiable fragments.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"securecode/internal/detect"
	"securecode/internal/llm"
	"securecode/internal/logging"
	"securecode/internal/slicer"
	"securecode/internal/syntax"
	"securecode/internal/types"
)

// Scanner turns a source unit into an ordered list of hypotheses.
type Scanner struct {
	detector detect.Detector
	client   llm.Client
	slicer   *slicer.Slicer
	log      *zap.Logger
}

// New wires the scanner from its collaborators.
func New(detector detect.Detector, client llm.Client, sl *slicer.Slicer) *Scanner {
	return &Scanner{
		detector: detector,
		client:   client,
		slicer:   sl,
		log:      logging.Get(logging.CategoryScanner),
	}
}

type triage struct {
	Assessment string  `json:"assessment"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// Scan produces hypotheses in detector order. Hits the model judges to
// be false positives are suppressed; hits whose slicing fails are kept
// with the dropped-during-slicing outcome so nothing disappears
// silently. Only context cancellation or an unreachable model aborts.
func (s *Scanner) Scan(ctx context.Context, src types.SourceUnit) ([]*types.Hypothesis, error) {
	hits := s.detector.Scan(src)
	s.log.Info("pattern scan complete",
		zap.String("path", src.Path), zap.Int("hits", len(hits)))

	hypotheses := make([]*types.Hypothesis, 0, len(hits))
	for _, hit := range hits {
		h := &types.Hypothesis{
			Location:   hit.Location,
			Category:   hit.Category,
			CWE:        hit.Category.CWE(),
			Severity:   hit.Severity,
			Rationale:  hit.Description,
			Confidence: hit.RawConfidence,
		}

		t, err := s.assess(ctx, src, hit)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, llm.ErrUnavailable) {
				return nil, err
			}
			// Keep the detector's own judgment when triage misbehaves.
			s.log.Warn("triage failed, keeping raw hit",
				zap.String("location", hit.Location.String()), zap.Error(err))
		} else {
			if strings.EqualFold(t.Assessment, "FALSE_POSITIVE") {
				s.log.Debug("hit suppressed as false positive",
					zap.String("location", hit.Location.String()),
					zap.String("rationale", t.Rationale))
				continue
			}
			if t.Rationale != "" {
				h.Rationale = t.Rationale
			}
			if t.Confidence > 0 && t.Confidence <= 1 {
				h.Confidence = t.Confidence
			}
		}

		// Languages without a grammar cannot be sliced or verified;
		// their findings still surface with the detector's evidence.
		if !syntax.Supported(src.Language) {
			h.Outcome = types.OutcomeUnverifiable
			h.Failure = fmt.Sprintf("pattern detection only: no slicing or verification for %s", src.Language)
			hypotheses = append(hypotheses, h)
			continue
		}

		sl, err := s.slicer.Slice(ctx, src, hit.Location, hit.Category)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, llm.ErrUnavailable) {
				return nil, err
			}
			h.Outcome = types.OutcomeDroppedSlicing
			h.Failure = err.Error()
			s.log.Warn("hypothesis dropped during slicing",
				zap.String("location", hit.Location.String()), zap.Error(err))
			hypotheses = append(hypotheses, h)
			continue
		}
		h.Slice = sl
		hypotheses = append(hypotheses, h)
	}

	return hypotheses, nil
}

// assess asks the model whether the hit is exploitable in context.
func (s *Scanner) assess(ctx context.Context, src types.SourceUnit, hit detect.Hit) (*triage, error) {
	prompt := fmt.Sprintf(`A static detector flagged a possible %s issue (%s) at %s:
%s

Surrounding code:
%s

Judge whether the flag is exploitable in this context. Respond with a
JSON object only:
{"assessment": "TRUE_POSITIVE" or "FALSE_POSITIVE", "rationale": "...", "confidence": 0.0-1.0}`,
		hit.Category, hit.Description, hit.Location.String(),
		contextWindow(src.Code, hit.Location.Line, 3), src.Code)

	raw, err := s.client.Generate(ctx, prompt, llm.DefaultOptions())
	if err != nil {
		return nil, err
	}

	var t triage
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &t); err != nil {
		return nil, fmt.Errorf("triage response is not valid JSON: %w", err)
	}
	if t.Assessment == "" {
		return nil, errors.New("triage response missing assessment")
	}
	return &t, nil
}

// contextWindow returns the flagged line with n lines either side.
func contextWindow(code string, line, n int) string {
	lines := strings.Split(code, "\n")
	lo := line - 1 - n
	if lo < 0 {
		lo = 0
	}
	hi := line + n
	if hi > len(lines) {
		hi = len(lines)
	}
	return strings.Join(lines[lo:hi], "\n")
}
