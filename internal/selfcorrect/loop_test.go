package selfcorrect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"securecode/internal/llm"
)

// scriptedClient replays canned responses in order.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return "", errors.New("script exhausted")
}

func acceptAll(string) (bool, string) { return true, "" }

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	client := &scriptedClient{responses: []string{"good"}}
	loop := New(client)

	out, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(acceptAll))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "good" {
		t.Errorf("expected scripted output, got %q", out)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 call, got %d", client.calls)
	}
}

func TestRun_FeedbackReachesRetryPrompt(t *testing.T) {
	client := &scriptedClient{responses: []string{"bad", "good"}}
	loop := New(client)

	out, err := loop.Run(context.Background(),
		PromptFunc(func(feedback string) string {
			if feedback == "" {
				return "first prompt"
			}
			return "retry: " + feedback
		}),
		ValidateFunc(func(output string) (bool, string) {
			if output == "bad" {
				return false, "does not parse"
			}
			return true, ""
		}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "good" {
		t.Errorf("expected second attempt to win, got %q", out)
	}
	if len(client.prompts) != 2 || !strings.Contains(client.prompts[1], "does not parse") {
		t.Errorf("expected rejection reason in retry prompt, got %q", client.prompts)
	}
}

func TestRun_ExhaustionReturnsTypedError(t *testing.T) {
	client := &scriptedClient{responses: []string{"a", "b", "c"}}
	loop := New(client)

	_, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(func(string) (bool, string) { return false, "never good enough" }))
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatal("expected *ExhaustedError")
	}
	if exhausted.Attempts != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, exhausted.Attempts)
	}
	if exhausted.LastReason != "never good enough" {
		t.Errorf("expected last reason preserved, got %q", exhausted.LastReason)
	}
	if client.calls != DefaultMaxAttempts {
		t.Errorf("expected exactly %d calls, got %d", DefaultMaxAttempts, client.calls)
	}
}

func TestRun_GenerationErrorCountsAsAttempt(t *testing.T) {
	client := &scriptedClient{
		responses: []string{"", "good"},
		errs:      []error{errors.New("empty completion"), nil},
	}
	loop := New(client)

	out, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(acceptAll))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "good" {
		t.Errorf("expected recovery on second attempt, got %q", out)
	}
}

// slowFirstClient hangs on its first call and answers the second.
type slowFirstClient struct {
	calls int
}

func (c *slowFirstClient) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	c.calls++
	if c.calls == 1 {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "good", nil
}

func TestRun_HungGenerationBecomesFailedAttempt(t *testing.T) {
	client := &slowFirstClient{}
	loop := New(llm.WithTimeout(client, 30*time.Millisecond))

	out, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(acceptAll))
	if err != nil {
		t.Fatalf("a per-call timeout must be retried, got %v", err)
	}
	if out != "good" {
		t.Errorf("expected the retry to succeed, got %q", out)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", client.calls)
	}
}

func TestRun_UnavailableAbortsImmediately(t *testing.T) {
	client := &scriptedClient{errs: []error{llm.ErrUnavailable}}
	loop := New(client)

	_, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(acceptAll))
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected no retry after unavailability, got %d calls", client.calls)
	}
}

func TestRun_CanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{responses: []string{"good"}}
	loop := New(client)

	_, err := loop.Run(ctx,
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(acceptAll))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithMaxAttempts_OverridesBound(t *testing.T) {
	client := &scriptedClient{responses: []string{"a", "b", "c", "d", "e"}}
	loop := New(client).WithMaxAttempts(5)

	_, err := loop.Run(context.Background(),
		PromptFunc(func(string) string { return "p" }),
		ValidateFunc(func(string) (bool, string) { return false, "no" }))
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if client.calls != 5 {
		t.Errorf("expected 5 calls, got %d", client.calls)
	}
}
