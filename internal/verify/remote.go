package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"securecode/internal/types"
)

// RemoteEngine talks to a verification service exposing a single
// POST /verify endpoint. It exists for deployments that isolate
// symbolic execution in its own sandboxed process pool.
type RemoteEngine struct {
	http *resty.Client
}

// NewRemoteEngine builds a client for the service at baseURL.
func NewRemoteEngine(baseURL string, timeout time.Duration) *RemoteEngine {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &RemoteEngine{http: client}
}

type verifyRequest struct {
	Artifact string `json:"artifact"`
}

type verifyResponse struct {
	Verdict        string `json:"verdict"`
	Counterexample string `json:"counterexample"`
	Detail         string `json:"detail"`
}

func (e *RemoteEngine) Verify(ctx context.Context, artifact string) (*EngineOutcome, error) {
	var out verifyResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetBody(verifyRequest{Artifact: artifact}).
		SetResult(&out).
		Post("/verify")
	if ctx.Err() != nil {
		return &EngineOutcome{
			Verdict: types.VerdictInconclusive,
			Detail:  "engine timed out before reaching a verdict",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verification service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("verification service returned %s", resp.Status())
	}

	switch types.Verdict(out.Verdict) {
	case types.VerdictVerified:
		return &EngineOutcome{Verdict: types.VerdictVerified, Detail: out.Detail}, nil
	case types.VerdictRefuted:
		return &EngineOutcome{
			Verdict:        types.VerdictRefuted,
			Counterexample: out.Counterexample,
			Detail:         out.Detail,
		}, nil
	default:
		return &EngineOutcome{Verdict: types.VerdictInconclusive, Detail: out.Detail}, nil
	}
}
