// Package config loads securecode configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"securecode/internal/types"
)

// Config holds all securecode configuration.
type Config struct {
	// LLM configures the language-model collaborator.
	LLM LLMConfig `yaml:"llm"`

	// Engine configures the symbolic-execution collaborator.
	Engine EngineConfig `yaml:"engine"`

	// Budgets bound every analysis run.
	Budgets types.Budgets `yaml:"budgets"`

	// CatalogPath optionally points at a YAML guidance catalog that
	// replaces the compiled-in per-category contract/patch examples.
	CatalogPath string `yaml:"catalog_path"`

	// Debug enables development logging.
	Debug bool `yaml:"debug"`
}

// LLMConfig configures the inference client.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // gemini, http
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	// RetryCount applies exponential backoff at the transport boundary
	// for the HTTP provider. Zero disables transport retries.
	RetryCount int `yaml:"retry_count"`
}

// EngineConfig configures the symbolic-execution engine.
type EngineConfig struct {
	Kind    string        `yaml:"kind"` // exec, remote
	Binary  string        `yaml:"binary"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// Exhaustive declares whether the engine's "verified" is a sound
	// proof over all inputs. Leave false unless the engine guarantees it.
	Exhaustive bool `yaml:"exhaustive"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Timeout:     2 * time.Minute,
			MaxTokens:   2048,
			Temperature: 0.2,
			TopP:        0.95,
		},
		Engine: EngineConfig{
			Kind:    "exec",
			Binary:  "crosshair",
			Timeout: 30 * time.Second,
		},
		Budgets: types.DefaultBudgets(),
	}
}

// Load reads configuration from path, falling back to defaults for any
// unset field, then applies environment overrides. A missing file is not
// an error; defaults plus environment are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Budgets = cfg.Budgets.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SECURECODE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SECURECODE_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SECURECODE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SECURECODE_ENGINE_BINARY"); v != "" {
		c.Engine.Binary = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "http":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "http" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm provider http requires base_url")
	}
	switch c.Engine.Kind {
	case "exec", "remote":
	default:
		return fmt.Errorf("unknown engine kind %q", c.Engine.Kind)
	}
	if c.Engine.Kind == "remote" && c.Engine.BaseURL == "" {
		return fmt.Errorf("engine kind remote requires base_url")
	}
	return nil
}
