// Package ratelimit provides the token-bucket rate limiting middleware of the
// LLM client chain. One bucket is kept per tenant, provider and model so that
// concurrent pipeline stages share a single provider budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

var (
	errInvalidRate  = errors.New("tokens per second must be positive")
	errInvalidBurst = errors.New("burst size must be at least 1")
)

// rateLimitMiddleware holds the per-key token buckets.
type rateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   configuration.RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimitMiddleware creates rate limiting middleware. A disabled
// configuration yields a pass-through middleware.
//
// With Wait set, callers block until a token is available or their context
// ends. Otherwise an exhausted bucket fails fast with a RateLimitError whose
// RetryAfter reflects the bucket's refill delay.
func NewRateLimitMiddleware(cfg configuration.RateLimitConfig) (transport.Middleware, error) {
	if !cfg.Enabled {
		return func(next transport.Handler) transport.Handler { return next }, nil
	}
	if cfg.TokensPerSecond <= 0 {
		return nil, fmt.Errorf("%w, got %f", errInvalidRate, cfg.TokensPerSecond)
	}
	if cfg.BurstSize < 1 {
		return nil, fmt.Errorf("%w, got %d", errInvalidBurst, cfg.BurstSize)
	}

	rlm := &rateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		logger:   slog.Default().With("component", "ratelimit"),
	}
	return rlm.middleware(), nil
}

func (r *rateLimitMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			key := buildKey(req)
			limiter := r.getOrCreateLimiter(key)

			if r.config.Wait {
				if err := limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limit wait for %s: %w", key, err)
				}
				return next.Handle(ctx, req)
			}

			if !limiter.Allow() {
				// Reserve only to learn the delay; cancel so no token is consumed.
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(math.Ceil(delay.Seconds())), 1)
				r.logger.Debug("local rate limit exceeded", "key", key, "retry_after", retryAfter)
				return nil, &llmerrors.RateLimitError{
					Provider:   req.Provider,
					RetryAfter: retryAfter,
					LocalLimit: true,
				}
			}

			return next.Handle(ctx, req)
		})
	}
}

func (r *rateLimitMiddleware) getOrCreateLimiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(r.config.TokensPerSecond), r.config.BurstSize)
	r.limiters[key] = l
	return l
}

// buildKey returns the bucket key tenant:provider:model.
func buildKey(req *transport.Request) string {
	tenant := req.TenantID
	if tenant == "" {
		tenant = "default"
	}
	return fmt.Sprintf("%s:%s:%s", tenant, req.Provider, req.Model)
}
