// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the redgraph configuration.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`     // Scheduler limits
	Retry     RetryConfig     `toml:"retry"`      // Backoff and retry classification
	RateLimit RateLimitConfig `toml:"rate_limit"` // Global and per-resource throttling
	LLM       LLMConfig       `toml:"llm"`        // Planner model settings
	Catalog   CatalogConfig   `toml:"catalog"`    // Tool catalog
	Logging   LoggingConfig   `toml:"logging"`
}

// EngineConfig contains scheduler limits.
type EngineConfig struct {
	MaxConcurrency int    `toml:"max_concurrency"` // Simultaneously running tasks (default 5)
	TaskTimeout    string `toml:"task_timeout"`    // Per-attempt wall clock limit (default "2m")
	MaxIterations  int    `toml:"max_iterations"`  // OODA replan limit (default 5)
}

// RetryConfig contains backoff and retry classification settings.
type RetryConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`  // Retries after the first attempt (default 2)
	InitialDelay string   `toml:"initial_delay"` // Default "1s"
	MaxDelay     string   `toml:"max_delay"`     // Default "30s"
	Backoff      string   `toml:"backoff"`       // fixed | linear | exponential
	Increment    string   `toml:"increment"`     // Linear step (default "1s")
	Multiplier   float64  `toml:"multiplier"`    // Exponential factor (default 2.0)
	Jitter       float64  `toml:"jitter"`        // Fraction in [0,1] (default 0.1)
	NonRetryable []string `toml:"non_retryable"` // Substrings that force no retry
	Retryable    []string `toml:"retryable"`     // Substrings that force retry
}

// RateLimitConfig contains throttling settings.
type RateLimitConfig struct {
	GlobalPermits      int    `toml:"global_permits"`       // Default 10
	PerResourcePermits int    `toml:"per_resource_permits"` // Default 2
	MinInterval        string `toml:"min_interval"`         // Per-resource spacing (default "250ms")
}

// LLMConfig contains LLM provider settings for the planner.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama)
	MaxTokens int    `toml:"max_tokens"`
}

// CatalogConfig locates the tool catalog.
type CatalogConfig struct {
	Path string `toml:"path"` // YAML tool catalog (default "tools.yaml")
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxConcurrency: 5,
			TaskTimeout:    "2m",
			MaxIterations:  5,
		},
		Retry: RetryConfig{
			MaxAttempts:  2,
			InitialDelay: "1s",
			MaxDelay:     "30s",
			Backoff:      "exponential",
			Increment:    "1s",
			Multiplier:   2.0,
			Jitter:       0.1,
			NonRetryable: []string{"not found", "unauthorized", "forbidden", "invalid argument", "400", "401", "403", "404"},
			Retryable:    []string{"timeout", "timed out", "connection refused", "connection reset", "rate limit", "429", "500", "502", "503", "504"},
		},
		RateLimit: RateLimitConfig{
			GlobalPermits:      10,
			PerResourcePermits: 2,
			MinInterval:        "250ms",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Catalog: CatalogConfig{
			Path: "tools.yaml",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from redgraph.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "redgraph.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// TaskTimeout parses the per-attempt timeout, falling back to the default on
// an empty or malformed value.
func (c *Config) TaskTimeout() time.Duration {
	return parseDuration(c.Engine.TaskTimeout, 2*time.Minute)
}

// InitialDelay parses the retry initial delay.
func (c *Config) InitialDelay() time.Duration {
	return parseDuration(c.Retry.InitialDelay, time.Second)
}

// MaxDelay parses the retry delay cap.
func (c *Config) MaxDelay() time.Duration {
	return parseDuration(c.Retry.MaxDelay, 30*time.Second)
}

// Increment parses the linear backoff step.
func (c *Config) Increment() time.Duration {
	return parseDuration(c.Retry.Increment, time.Second)
}

// MinInterval parses the per-resource spacing interval.
func (c *Config) MinInterval() time.Duration {
	return parseDuration(c.RateLimit.MinInterval, 250*time.Millisecond)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
