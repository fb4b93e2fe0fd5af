package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securecode/internal/types"
)

func sampleState() *types.PipelineState {
	state := types.NewPipelineState(
		types.SourceUnit{Path: "app.py", Language: types.LangPython},
		types.DefaultBudgets())
	state.Complete = true
	state.Hypotheses = []*types.Hypothesis{
		{
			Location:  types.Location{Path: "app.py", Line: 2},
			Category:  types.CategoryInjection,
			CWE:       "CWE-89",
			Severity:  types.SeverityHigh,
			Rationale: "SQL built from user input",
			Outcome:   types.OutcomePatchedVerified,
			Patches:   []*types.Patch{{Code: "fixed", Diff: "-old\n+new", Verified: true}},
		},
		{
			Location:  types.Location{Path: "app.py", Line: 9},
			Category:  types.CategoryPathTraversal,
			CWE:       "CWE-22",
			Severity:  types.SeverityHigh,
			Rationale: "path concatenation",
			Outcome:   types.OutcomeInconclusive,
			Failure:   "engine timed out",
		},
	}
	return state
}

func TestWriteSARIF_ProducesValidLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, sampleState()))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), "output must be valid JSON")
	assert.Equal(t, "2.1.0", doc["version"])

	out := buf.String()
	assert.Contains(t, out, "injection/CWE-89")
	assert.Contains(t, out, "path-traversal/CWE-22")
	assert.Contains(t, out, "app.py")
}

func TestWriteSARIF_LevelsFollowOutcome(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, sampleState()))
	out := buf.String()

	// The verified-patched finding drops to note; the inconclusive one
	// keeps its severity level.
	assert.Contains(t, out, `"note"`)
	assert.Contains(t, out, `"error"`)
	assert.Contains(t, out, "engine timed out")
}

func TestWriteJSON_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	state := sampleState()
	require.NoError(t, WriteJSON(&buf, state))

	var decoded types.PipelineState
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, state.AnalysisID, decoded.AnalysisID)
	require.Len(t, decoded.Hypotheses, 2)
	assert.Equal(t, types.OutcomePatchedVerified, decoded.Hypotheses[0].Outcome)
}
