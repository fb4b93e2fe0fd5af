// Package report renders a finished pipeline state for consumers:
// SARIF 2.1.0 for code-scanning integrations and indented JSON for
// direct inspection.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"securecode/internal/types"
)

const toolName = "securecode"
const toolURI = "https://github.com/securecode/securecode"

// WriteSARIF renders the state as a SARIF 2.1.0 log. Every hypothesis
// becomes a result, including clean and dropped ones, so the report
// never hides a finding the pipeline saw.
func WriteSARIF(w io.Writer, state *types.PipelineState) error {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("sarif report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, h := range state.Hypotheses {
		ruleID := ruleIDFor(h)
		run.AddRule(ruleID).
			WithDescription(h.Rationale).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: severityLevel(h.Severity),
			})

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(h.Location.Path)).
				WithRegion(sarif.NewRegion().WithStartLine(h.Location.Line)),
		)

		result := sarif.NewRuleResult(ruleID).
			WithMessage(sarif.NewTextMessage(resultMessage(h))).
			WithLevel(resultLevel(h)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	log.AddRun(run)

	return log.PrettyWrite(w)
}

// WriteJSON renders the state as indented JSON.
func WriteJSON(w io.Writer, state *types.PipelineState) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func ruleIDFor(h *types.Hypothesis) string {
	if h.CWE != "" {
		return fmt.Sprintf("%s/%s", h.Category, h.CWE)
	}
	return string(h.Category)
}

func resultMessage(h *types.Hypothesis) string {
	msg := fmt.Sprintf("%s [%s]", h.Rationale, h.Outcome)
	if patch := h.FinalPatch(); patch != nil && patch.Verified {
		msg += "; a verified fix is attached in the analysis output"
	}
	if h.Failure != "" {
		msg += "; " + h.Failure
	}
	return msg
}

// resultLevel maps outcomes onto SARIF levels: resolved and clean
// findings drop to note, everything still open keeps the detector
// severity.
func resultLevel(h *types.Hypothesis) string {
	switch h.Outcome {
	case types.OutcomePatchedVerified, types.OutcomeNotVulnerable:
		return "note"
	default:
		return severityLevel(h.Severity)
	}
}

func severityLevel(s types.Severity) string {
	switch s {
	case types.SeverityCritical, types.SeverityHigh:
		return "error"
	case types.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
