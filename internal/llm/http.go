package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"securecode/internal/logging"
)

// HTTPClient implements Client against an OpenAI-compatible completion
// endpoint (vLLM, llama.cpp server and similar). Exponential backoff with
// jitter lives here, at the collaborator-invocation boundary; the stages
// above never retry transport failures implicitly.
type HTTPClient struct {
	client *resty.Client
	model  string
}

// HTTPConfig configures the HTTP inference client.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RetryCount int
}

// NewHTTPClient creates a client for an OpenAI-compatible server.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm http: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(16 * time.Second)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPClient{client: client, model: cfg.Model}, nil
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one completion against /v1/completions.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	req := completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}

	var out completionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/completions")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.Get(logging.CategoryLLM).Warn("inference call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		detail := resp.Status()
		if out.Error != nil {
			detail = out.Error.Message
		}
		return "", fmt.Errorf("llm http: %s", detail)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Text) == "" {
		return "", fmt.Errorf("llm http: empty completion")
	}
	return out.Choices[0].Text, nil
}
