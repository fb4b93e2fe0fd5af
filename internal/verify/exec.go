package verify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"securecode/internal/logging"
	"securecode/internal/types"
)

// ExecEngine shells out to a local crosshair-compatible checker. The
// artifact is written to a temp file and the binary is run against it
// under the caller's context.
type ExecEngine struct {
	binary string
	log    *zap.Logger
}

// NewExecEngine wraps the given checker binary.
func NewExecEngine(binary string) *ExecEngine {
	return &ExecEngine{binary: binary, log: logging.Get(logging.CategoryVerifier)}
}

func (e *ExecEngine) Verify(ctx context.Context, artifact string) (*EngineOutcome, error) {
	dir, err := os.MkdirTemp("", "securecode-verify-*")
	if err != nil {
		return nil, fmt.Errorf("verify workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "artifact.py")
	if err := os.WriteFile(path, []byte(artifact), 0o600); err != nil {
		return nil, fmt.Errorf("verify workspace: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.binary, "check", path)
	out, runErr := cmd.CombinedOutput()
	output := string(out)

	if ctx.Err() != nil {
		return &EngineOutcome{
			Verdict: types.VerdictInconclusive,
			Detail:  "engine timed out before reaching a verdict",
		}, nil
	}

	e.log.Debug("engine run finished",
		zap.String("binary", e.binary),
		zap.Bool("failed", runErr != nil),
		zap.Int("output_bytes", len(output)))
	return parseCheckerOutput(output, runErr), nil
}

// parseCheckerOutput reduces crosshair-style output to a verdict. A
// refutation reports the "false when calling" line as counterexample; a
// clean run is verified; anything else, including an engine crash, is
// inconclusive so it can never be mistaken for safety.
func parseCheckerOutput(output string, runErr error) *EngineOutcome {
	lowered := strings.ToLower(output)

	if strings.Contains(lowered, "false when calling") || strings.Contains(lowered, "counterexample") {
		return &EngineOutcome{
			Verdict:        types.VerdictRefuted,
			Counterexample: extractCounterexample(output),
			Detail:         strings.TrimSpace(output),
		}
	}
	if runErr == nil || strings.Contains(lowered, "no issues found") {
		return &EngineOutcome{Verdict: types.VerdictVerified}
	}
	return &EngineOutcome{
		Verdict: types.VerdictInconclusive,
		Detail:  fmt.Sprintf("engine exited abnormally: %v: %s", runErr, strings.TrimSpace(output)),
	}
}

func extractCounterexample(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(strings.ToLower(line), "false when calling") {
			return strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(output)
}
