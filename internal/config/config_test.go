package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected gemini default, got %q", cfg.LLM.Provider)
	}
	if cfg.Engine.Binary != "crosshair" {
		t.Errorf("expected crosshair default, got %q", cfg.Engine.Binary)
	}
	if cfg.Budgets.MaxIterations != 3 {
		t.Errorf("expected default iteration budget, got %d", cfg.Budgets.MaxIterations)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "llm:\n" +
		"  provider: http\n" +
		"  base_url: http://localhost:8000\n" +
		"  model: local-model\n" +
		"budgets:\n" +
		"  max_iterations: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "http" || cfg.LLM.BaseURL != "http://localhost:8000" {
		t.Errorf("expected file values, got %+v", cfg.LLM)
	}
	if cfg.Budgets.MaxIterations != 5 {
		t.Errorf("expected 5 iterations, got %d", cfg.Budgets.MaxIterations)
	}
	// Unset fields keep defaults.
	if cfg.Budgets.VerifyTimeout != 30*time.Second {
		t.Errorf("expected default verify timeout, got %s", cfg.Budgets.VerifyTimeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SECURECODE_API_KEY", "env-key")
	t.Setenv("SECURECODE_LLM_MODEL", "env-model")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env API key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("expected env model, got %q", cfg.LLM.Model)
	}
}

func TestLoad_ClampsIterationBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("budgets:\n  max_iterations: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Budgets.MaxIterations != 10 {
		t.Errorf("expected clamp to 10, got %d", cfg.Budgets.MaxIterations)
	}
}

func TestValidate_RejectsBadProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestValidate_HTTPRequiresBaseURL(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "http"
	cfg.LLM.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for http without base_url")
	}
}

func TestValidate_RemoteEngineRequiresBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Engine.Kind = "remote"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for remote engine without base_url")
	}
}
