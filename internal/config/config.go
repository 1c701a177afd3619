// Package config loads the YAML configuration of the sdg binary and derives
// the settings of each component from it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// ErrInvalidConfig is returned when a configuration file does not validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root of the YAML configuration.
type Config struct {
	ChunkSize   int `yaml:"chunk_size" validate:"min=1"`
	Concurrency int `yaml:"concurrency" validate:"min=1"`

	LLM       LLMConfig       `yaml:"llm"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`

	Prompts  PromptConfig          `yaml:"prompts"`
	Policies []evolution.PolicyDef `yaml:"policies" validate:"min=1,dive"`

	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Temporal TemporalConfig `yaml:"temporal"`
}

// LLMConfig selects the provider and generation parameters.
type LLMConfig struct {
	Provider    string            `yaml:"provider" validate:"required,oneof=openai anthropic google"`
	Model       string            `yaml:"model" validate:"required"`
	Endpoint    string            `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	APIKeyEnv   string            `yaml:"api_key_env"`
	Temperature float64           `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int64             `yaml:"max_tokens" validate:"min=1"`
	Timeout     time.Duration     `yaml:"timeout" validate:"gt=0"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// RetryConfig configures retries of failed provider calls.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" validate:"min=1"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
	InitialInterval time.Duration `yaml:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `yaml:"max_interval" validate:"gtefield=InitialInterval"`
	Multiplier      float64       `yaml:"multiplier" validate:"gte=1"`
}

// RateLimitConfig configures the client-side token bucket.
type RateLimitConfig struct {
	Enabled         bool    `yaml:"enabled"`
	TokensPerSecond float64 `yaml:"tokens_per_second" validate:"required_if=Enabled true,gte=0"`
	Burst           int     `yaml:"burst" validate:"required_if=Enabled true,gte=0"`
}

// CacheConfig configures the Redis response cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Enabled true"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// PromptConfig overrides the built-in synthesis and critic templates.
// Empty values keep the built-ins.
type PromptConfig struct {
	Synthesis string `yaml:"synthesis,omitempty"`
	Critic    string `yaml:"critic,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

// EventsConfig configures the event outbox. An empty path disables it.
type EventsConfig struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// TemporalConfig configures the Temporal client.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" validate:"required"`
	Namespace string `yaml:"namespace" validate:"required"`
	TaskQueue string `yaml:"task_queue" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ChunkSize:   domain.DefaultChunkSize,
		Concurrency: 1,
		LLM: LLMConfig{
			Provider:    configuration.DefaultProvider,
			Model:       configuration.DefaultModel,
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: configuration.DefaultTemperature,
			MaxTokens:   configuration.DefaultMaxTokens,
			Timeout:     configuration.DefaultHTTPTimeoutSeconds * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     configuration.DefaultMaxAttempts,
			MaxElapsedTime:  configuration.DefaultMaxElapsedTime,
			InitialInterval: configuration.DefaultInitialInterval,
			MaxInterval:     configuration.DefaultMaxInterval,
			Multiplier:      configuration.DefaultBackoffMultiplier,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			TokensPerSecond: configuration.DefaultTokensPerSecond,
			Burst:           configuration.DefaultBurstSize,
		},
		Cache: CacheConfig{
			RedisAddr: configuration.DefaultRedisAddr,
			TTL:       configuration.DefaultCacheTTL,
		},
		Policies: evolution.DefaultPolicyDefs(),
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Addr: ":9090"},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "sdg-evolution",
		},
	}
}

// Load reads the YAML file at path over Default. An empty path returns
// Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks field constraints and that every template parses.
// A non-positive chunk size is also reported as domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: %w: chunk_size must be positive", ErrInvalidConfig, domain.ErrInvalidConfiguration)
	}
	if err := domain.Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.PolicyTable(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.SynthesisTemplate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.CriticTemplate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// PolicyTable parses the configured evolution policies.
func (c *Config) PolicyTable() (*evolution.PolicyTable, error) {
	return evolution.ParsePolicyTable(c.Policies)
}

// SynthesisTemplate returns the configured or built-in synthesis template.
func (c *Config) SynthesisTemplate() (*prompt.Template, error) {
	if strings.TrimSpace(c.Prompts.Synthesis) == "" {
		return prompt.Synthesis(), nil
	}
	return prompt.Parse("synthesis", c.Prompts.Synthesis, prompt.SynthesisData{})
}

// CriticTemplate returns the configured or built-in critic template.
func (c *Config) CriticTemplate() (*prompt.Template, error) {
	if strings.TrimSpace(c.Prompts.Critic) == "" {
		return prompt.Critic(), nil
	}
	return prompt.Parse("critic", c.Prompts.Critic, prompt.JudgmentData{})
}

// ClientConfig derives the LLM client configuration.
func (c *Config) ClientConfig() *configuration.Config {
	cc := configuration.DefaultConfig()
	cc.DefaultProvider = c.LLM.Provider
	cc.DefaultModel = c.LLM.Model
	cc.MaxTokens = c.LLM.MaxTokens
	cc.Temperature = c.LLM.Temperature
	cc.HTTPTimeout = c.LLM.Timeout

	cc.Providers = map[string]configuration.ProviderConfig{
		c.LLM.Provider: {
			Endpoint:  c.LLM.Endpoint,
			APIKeyEnv: c.LLM.APIKeyEnv,
			Timeout:   c.LLM.Timeout,
			Headers:   c.LLM.Headers,
		},
	}

	cc.Retry.MaxAttempts = c.Retry.MaxAttempts
	cc.Retry.MaxElapsedTime = c.Retry.MaxElapsedTime
	cc.Retry.InitialInterval = c.Retry.InitialInterval
	cc.Retry.MaxInterval = c.Retry.MaxInterval
	cc.Retry.Multiplier = c.Retry.Multiplier

	cc.RateLimit.Enabled = c.RateLimit.Enabled
	cc.RateLimit.TokensPerSecond = c.RateLimit.TokensPerSecond
	cc.RateLimit.BurstSize = c.RateLimit.Burst

	cc.Cache.Enabled = c.Cache.Enabled
	cc.Cache.RedisAddr = c.Cache.RedisAddr
	cc.Cache.RedisPassword = c.Cache.RedisPassword
	cc.Cache.RedisDB = c.Cache.RedisDB
	cc.Cache.TTL = c.Cache.TTL

	cc.Observability.MetricsEnabled = c.Metrics.Enabled
	return cc
}

// NewLogger builds the slog logger described by the logging section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
