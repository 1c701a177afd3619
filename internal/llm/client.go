package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/cache"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/providers"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/ratelimit"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/resilience"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/retry"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// Client implements Generator against a configured provider through the
// middleware chain logging → cache → retry → rate limit → provider.
// Rate limiting sits inside retry so that each attempt takes a token.
type Client struct {
	config  *configuration.Config
	handler transport.Handler

	retryStats func() retry.Stats
	cacheStats func() cache.Stats
}

// ClientOption customizes NewClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger  *slog.Logger
	metrics resilience.Metrics
	router  transport.Router
	redis   cache.RedisClient
}

// WithLogger sets the logger of the observability middleware.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithMetrics sets the metrics collector of the observability middleware.
func WithMetrics(m resilience.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = m }
}

// WithRouter replaces the provider router built from the configuration.
func WithRouter(r transport.Router) ClientOption {
	return func(o *clientOptions) { o.router = r }
}

// WithRedisClient supplies the Redis client used by the response cache.
func WithRedisClient(c cache.RedisClient) ClientOption {
	return func(o *clientOptions) { o.redis = c }
}

// NewClient validates cfg and assembles the middleware chain.
// A nil cfg uses configuration.DefaultConfig.
func NewClient(ctx context.Context, cfg *configuration.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	router := o.router
	if router == nil {
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		r, err := providers.NewRouter(cfg.Providers, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize router: %w", err)
		}
		router = r
	}

	rateLimit, err := ratelimit.NewRateLimitMiddleware(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	retryMiddleware, retryStats, err := retry.NewRetryMiddlewareWithStats(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}

	cacheMiddleware, cacheStats, err := cache.NewCacheMiddlewareWithRedis(ctx, cfg.Cache, o.redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	handler := transport.Chain(
		transport.NewHandler(router),
		resilience.NewLoggingMiddleware(cfg.Observability, o.logger, o.metrics),
		cacheMiddleware,
		retryMiddleware,
		rateLimit,
	)

	return &Client{
		config:     cfg,
		handler:    handler,
		retryStats: retryStats,
		cacheStats: cacheStats,
	}, nil
}

// Generate sends prompt to the default provider and model.
// The operation recorded for the call is taken from ctx (see WithOperation).
// A blank completion is reported as ErrEmptyCompletion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := &transport.Request{
		Operation:   transport.OperationFromContext(ctx),
		Provider:    c.config.DefaultProvider,
		Model:       c.config.DefaultModel,
		TenantID:    transport.ExtractTenantID(ctx),
		Prompt:      prompt,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Timeout:     c.timeout(),
		TraceID:     transport.ExtractTraceID(ctx),
	}

	key, err := transport.GenerateIdemKey(req)
	if err != nil {
		return "", fmt.Errorf("failed to generate idempotency key: %w", err)
	}
	req.IdempotencyKey = key.String()

	resp, err := c.handler.Handle(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", llmerrors.ErrEmptyCompletion
	}
	return resp.Content, nil
}

// Stats reports the retry and cache counters of the client.
func (c *Client) Stats() (retry.Stats, cache.Stats) {
	return c.retryStats(), c.cacheStats()
}

func (c *Client) timeout() time.Duration {
	if p, ok := c.config.Providers[c.config.DefaultProvider]; ok && p.Timeout > 0 {
		return p.Timeout
	}
	return c.config.HTTPTimeout
}
