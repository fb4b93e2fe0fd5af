// Package verify is the third pipeline stage: it assembles a
// slice+contract artifact and hands it to a symbolic-execution engine,
// reducing whatever the engine says to the tri-state verdict the rest
// of the pipeline acts on.
package verify

import (
	"context"

	"securecode/internal/types"
)

// EngineOutcome is the raw result of one engine invocation, before the
// verifier stamps timing and exhaustiveness onto it.
type EngineOutcome struct {
	Verdict        types.Verdict
	Counterexample string
	Detail         string
}

// Engine runs a verification artifact to completion or cancellation.
// Implementations must honor context deadlines; the verifier maps a
// deadline hit to the inconclusive verdict, never to an error.
type Engine interface {
	Verify(ctx context.Context, artifact string) (*EngineOutcome, error)
}
