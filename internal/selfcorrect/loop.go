// Package selfcorrect implements the bounded generate-validate-retry
// primitive shared by the speculator and the patcher. It carries no
// domain knowledge of contracts or patches; behavior is supplied by a
// PromptBuilder/Validator strategy pair so every call site gets
// identical retry semantics.
package selfcorrect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"securecode/internal/llm"
	"securecode/internal/logging"
)

// DefaultMaxAttempts is the shared retry bound.
const DefaultMaxAttempts = 3

// ErrExhaustedRetries is returned when no attempt validated.
var ErrExhaustedRetries = errors.New("self-correction retries exhausted")

// ExhaustedError wraps ErrExhaustedRetries with the last failure reason
// so callers can surface it in the hypothesis outcome.
type ExhaustedError struct {
	Attempts   int
	LastReason string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("self-correction retries exhausted after %d attempts: %s", e.Attempts, e.LastReason)
}

func (e *ExhaustedError) Unwrap() error { return ErrExhaustedRetries }

// PromptBuilder builds the generation prompt for one attempt. feedback is
// empty on the first attempt and carries the previous failure reason on
// retries.
type PromptBuilder interface {
	BuildPrompt(feedback string) string
}

// Validator judges a generated artifact.
type Validator interface {
	// Validate returns (true, "") for acceptable output, or
	// (false, reason) to trigger a retry with that reason as feedback.
	Validate(output string) (bool, string)
}

// PromptFunc adapts a function to PromptBuilder.
type PromptFunc func(feedback string) string

func (f PromptFunc) BuildPrompt(feedback string) string { return f(feedback) }

// ValidateFunc adapts a function to Validator.
type ValidateFunc func(output string) (bool, string)

func (f ValidateFunc) Validate(output string) (bool, string) { return f(output) }

// Loop runs the generate-validate-retry cycle against one LLM client.
type Loop struct {
	client      llm.Client
	maxAttempts int
	opts        llm.Options
}

// New creates a loop with the default attempt bound.
func New(client llm.Client) *Loop {
	return &Loop{client: client, maxAttempts: DefaultMaxAttempts, opts: llm.DefaultOptions()}
}

// WithMaxAttempts overrides the attempt bound for one call site.
func (l *Loop) WithMaxAttempts(n int) *Loop {
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	clone := *l
	clone.maxAttempts = n
	return &clone
}

// WithOptions overrides the generation options.
func (l *Loop) WithOptions(opts llm.Options) *Loop {
	clone := *l
	clone.opts = opts
	return &clone
}

// Run executes the loop: build prompt (with prior failure feedback),
// generate, validate. It returns the first valid output. Retries carry
// no backoff; the cost model is per-call latency, not rate pressure.
//
// A context error or an unreachable collaborator aborts immediately;
// other generation errors count as failed attempts with the error text
// as feedback, matching validation failures.
func (l *Loop) Run(ctx context.Context, prompts PromptBuilder, validate Validator) (string, error) {
	log := logging.Get(logging.CategoryLLM)
	feedback := ""

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		prompt := prompts.BuildPrompt(feedback)

		output, err := l.client.Generate(ctx, prompt, l.opts)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, llm.ErrUnavailable) {
				return "", err
			}
			feedback = fmt.Sprintf("generation error: %v", err)
			log.Warn("self-correction attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max", l.maxAttempts),
				zap.Error(err))
			continue
		}

		ok, reason := validate.Validate(output)
		if ok {
			if attempt > 1 {
				log.Debug("self-correction succeeded", zap.Int("attempts", attempt))
			}
			return output, nil
		}

		feedback = reason
		log.Warn("self-correction attempt rejected",
			zap.Int("attempt", attempt),
			zap.Int("max", l.maxAttempts),
			zap.String("reason", reason))
	}

	return "", &ExhaustedError{Attempts: l.maxAttempts, LastReason: feedback}
}
