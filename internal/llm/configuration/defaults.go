package configuration

import (
	"time"
)

// HTTP constants.
const (
	DefaultHTTPTimeoutSeconds = 60
	DefaultMaxTokens          = 512
	DefaultTemperature        = 0.7
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultMaxElapsedTime    = 45 * time.Second
	DefaultInitialInterval   = 250 * time.Millisecond
	DefaultMaxInterval       = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Rate limiting constants.
const (
	DefaultTokensPerSecond = 5
	DefaultBurstSize       = 10
)

// Cache constants.
const (
	DefaultCacheTTL  = 24 * time.Hour
	DefaultRedisAddr = "localhost:6379"
)

// Default routing target.
const (
	DefaultProvider = "openai"
	DefaultModel    = "gpt-4o-mini"
)

// DefaultConfig returns a configuration with sensible defaults for a single
// OpenAI provider. The cache is disabled since it needs a Redis server.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeoutSeconds * time.Second,
		Providers: map[string]ProviderConfig{
			DefaultProvider: {APIKeyEnv: "OPENAI_API_KEY"},
		},
		DefaultProvider: DefaultProvider,
		DefaultModel:    DefaultModel,
		MaxTokens:       DefaultMaxTokens,
		Temperature:     DefaultTemperature,
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			MaxElapsedTime:  DefaultMaxElapsedTime,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			TokensPerSecond: DefaultTokensPerSecond,
			BurstSize:       DefaultBurstSize,
			Wait:            true,
		},
		Cache: CacheConfig{
			Enabled:   false,
			TTL:       DefaultCacheTTL,
			RedisAddr: DefaultRedisAddr,
		},
		Observability: ObservabilityConfig{
			RedactPrompts: true,
		},
	}
}
