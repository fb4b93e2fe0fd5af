package pipeline

import (
	"context"
	"fmt"

	"securecode/internal/config"
	"securecode/internal/detect"
	"securecode/internal/llm"
	"securecode/internal/patcher"
	"securecode/internal/scanner"
	"securecode/internal/slicer"
	"securecode/internal/speculate"
	"securecode/internal/verify"
)

// Build wires a full orchestrator from configuration: model client,
// detector, slicer, catalog and engine, then the four stages on top.
func Build(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := buildClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Every model call carries the run's per-call budget, on top of
	// whatever transport timeout the provider client has.
	client = llm.WithTimeout(client, cfg.Budgets.LLMTimeout)

	catalog, err := speculate.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	sl := slicer.New(client)
	sc := scanner.New(detect.NewPatternDetector(), client, sl)
	sp := speculate.New(client, catalog)
	v := verify.New(engine, cfg.Budgets.VerifyTimeout, cfg.Engine.Exhaustive)
	p := patcher.New(client, v)
	return New(sc, sp, v, p), nil
}

func buildClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	case "http":
		return llm.NewHTTPClient(llm.HTTPConfig{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			Timeout:    cfg.LLM.Timeout,
			RetryCount: cfg.LLM.RetryCount,
		})
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
}

func buildEngine(cfg *config.Config) (verify.Engine, error) {
	switch cfg.Engine.Kind {
	case "exec":
		return verify.NewExecEngine(cfg.Engine.Binary), nil
	case "remote":
		return verify.NewRemoteEngine(cfg.Engine.BaseURL, cfg.Engine.Timeout), nil
	}
	return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
}
