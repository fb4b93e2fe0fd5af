// Package llm defines the language-model collaborator boundary and its
// concrete clients. The pipeline treats every call site's retry policy
// explicitly; nothing in this package retries on its own except the HTTP
// transport, where backoff against rate limits belongs.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the inference service is entirely
// unreachable. The orchestrator treats it as fatal for the run.
var ErrUnavailable = errors.New("language-model service unavailable")

// Options tune a single generation call.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultOptions match the low-temperature settings used for code
// generation throughout the pipeline.
func DefaultOptions() Options {
	return Options{MaxTokens: 2048, Temperature: 0.2, TopP: 0.95}
}

// Client is the minimal interface the pipeline stages use to call the
// inference service. Calls block until the context deadline.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}
