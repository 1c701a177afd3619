// Package configuration holds the settings of the LLM client stack.
package configuration

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid llm configuration")

// Config holds the configuration for the LLM client.
// It covers provider settings and the parameters of each middleware in the
// client chain.
type Config struct {
	// HTTP client configuration
	HTTPTimeout time.Duration `json:"http_timeout"`
	HTTPClient  *http.Client  `json:"-"`

	// Provider configurations keyed by provider name.
	Providers map[string]ProviderConfig `json:"providers"`

	// Default routing target for requests that do not name one.
	DefaultProvider string `json:"default_provider"`
	DefaultModel    string `json:"default_model"`

	// Generation parameters applied to every request.
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	Retry     RetryConfig     `json:"retry"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Cache     CacheConfig     `json:"cache"`

	Observability ObservabilityConfig `json:"observability"`
}

// ProviderConfig holds provider-specific configuration and authentication.
type ProviderConfig struct {
	Endpoint  string            `json:"endpoint"`
	APIKey    string            `json:"-"` // Sensitive, not serialized
	APIKeyEnv string            `json:"api_key_env"`
	Timeout   time.Duration     `json:"timeout"`
	Headers   map[string]string `json:"headers"`
}

// RetryConfig controls retry behavior for failed LLM calls.
// Implements exponential backoff with jitter bounded by a total time budget.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`     // Maximum attempts including the first
	MaxElapsedTime  time.Duration `json:"max_elapsed_time"` // Total time budget for all attempts
	InitialInterval time.Duration `json:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `json:"max_interval"`     // Maximum backoff duration
	Multiplier      float64       `json:"multiplier"`       // Exponential backoff multiplier
	UseJitter       bool          `json:"use_jitter"`       // Enable full jitter randomization
}

// RateLimitConfig controls the in-process token buckets.
type RateLimitConfig struct {
	Enabled         bool    `json:"enabled"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	BurstSize       int     `json:"burst_size"`

	// Wait blocks callers until a token is available. When false the limiter
	// fails fast with a RateLimitError.
	Wait bool `json:"wait"`
}

// CacheConfig controls Redis-based response caching.
type CacheConfig struct {
	Enabled       bool          `json:"enabled"`
	TTL           time.Duration `json:"ttl"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"` // Sensitive field excluded from JSON.
	RedisDB       int           `json:"redis_db"`
}

// ObservabilityConfig controls logging and metrics of the client.
type ObservabilityConfig struct {
	MetricsEnabled bool `json:"metrics_enabled"`
	RedactPrompts  bool `json:"redact_prompts"`
}

// Validate checks the invariants the middleware constructors rely on.
func (c *Config) Validate() error {
	if c.DefaultProvider == "" {
		return fmt.Errorf("%w: default provider is required", ErrInvalidConfig)
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("%w: provider %q is not configured", ErrInvalidConfig, c.DefaultProvider)
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("%w: default model is required", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry max attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: retry multiplier must be at least 1", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled && (c.RateLimit.TokensPerSecond <= 0 || c.RateLimit.BurstSize < 1) {
		return fmt.Errorf("%w: rate limit requires positive rate and burst", ErrInvalidConfig)
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: cache requires a redis address", ErrInvalidConfig)
	}
	return nil
}
