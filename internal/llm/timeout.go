package llm

import (
	"context"
	"fmt"
	"time"
)

// timeoutClient bounds every Generate call with its own deadline so a
// hung inference call fails the attempt instead of stalling the run.
type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

// WithTimeout wraps a client with a per-call deadline. A non-positive
// timeout returns the client unchanged.
func WithTimeout(inner Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return inner
	}
	return &timeoutClient{inner: inner, timeout: timeout}
}

func (c *timeoutClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.inner.Generate(callCtx, prompt, opts)
	// A per-call deadline with the parent still alive is a failed
	// generation, not run cancellation; strip the context error so
	// callers retry instead of aborting.
	if err != nil && ctx.Err() == nil && callCtx.Err() != nil {
		return "", fmt.Errorf("llm: generation timed out after %v", c.timeout)
	}
	return out, err
}
