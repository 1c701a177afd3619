// Package retry provides the retry middleware of the LLM client chain.
// Transient provider failures are retried with exponential backoff and full
// jitter, bounded by an attempt count and a total time budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errMaxElapsedTimeInvalid  = errors.New("maxElapsedTime must be >= 0")

	// ErrContextCancelled is returned when the caller gives up while waiting.
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// RetryAfterProvider is implemented by errors that carry a server-provided
// delay before the next attempt.
type RetryAfterProvider interface {
	GetRetryAfter() time.Duration
}

// retryMiddleware implements retry logic with exponential backoff.
type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats
}

// NewRetryMiddlewareWithConfig creates retry middleware with the given configuration.
func NewRetryMiddlewareWithConfig(cfg configuration.RetryConfig) (transport.Middleware, error) {
	mw, _, err := NewRetryMiddlewareWithStats(cfg)
	return mw, err
}

// NewRetryMiddlewareWithStats is NewRetryMiddlewareWithConfig that also
// returns a snapshot function for the middleware's counters.
func NewRetryMiddlewareWithStats(cfg configuration.RetryConfig) (transport.Middleware, func() Stats, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, nil, err
	}

	rm := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
	}
	return rm.middleware(), rm.stats.snapshot, nil
}

func validateConfig(cfg configuration.RetryConfig) error {
	switch {
	case cfg.MaxAttempts <= 0:
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	case cfg.InitialInterval <= 0:
		return fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	case cfg.MaxInterval < cfg.InitialInterval:
		return fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	case cfg.Multiplier < 1.0:
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	case cfg.MaxElapsedTime < 0:
		return fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, cfg.MaxElapsedTime)
	}
	return nil
}

func (r *retryMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
			}

			var lastErr error
			startTime := time.Now()

			for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
				resp, err := next.Handle(ctx, req)
				r.stats.totalAttempts.Add(1)

				if err == nil {
					if attempt > 1 {
						r.stats.successfulRetries.Add(1)
						r.logger.Info("request succeeded after retry",
							"attempt", attempt,
							"operation", req.Operation,
							"provider", req.Provider,
							"model", req.Model)
					}
					return resp, nil
				}

				if !llmerrors.IsRetryableError(err) {
					r.logger.Debug("non-retryable error",
						"error", err,
						"attempt", attempt,
						"provider", req.Provider)
					return nil, err
				}
				lastErr = err

				if attempt == r.config.MaxAttempts {
					break
				}

				backoff, ok := r.nextBackoff(attempt, err, time.Since(startTime))
				if !ok {
					r.logger.Warn("max elapsed time exceeded",
						"elapsed", time.Since(startTime),
						"attempts", attempt,
						"last_error", err)
					break
				}
				r.stats.recordBackoff(backoff)
				if llmerrors.IsRateLimitError(err) {
					r.stats.rateLimitedRetries.Add(1)
				}

				r.logger.Debug("retrying after backoff",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
					"provider", req.Provider)

				timer := time.NewTimer(backoff)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
				}
			}

			r.stats.failedRetries.Add(1)
			return nil, fmt.Errorf("%w: %w", llmerrors.ErrMaxRetriesExceeded, lastErr)
		})
	}
}

// nextBackoff returns the wait before attempt+1, or false when waiting would
// exceed MaxElapsedTime. A server Retry-After that does not fit the budget
// falls back to plain exponential backoff.
func (r *retryMiddleware) nextBackoff(attempt int, err error, elapsed time.Duration) (time.Duration, bool) {
	backoff := ExponentialBackoff(attempt, r.config)
	if retryAfter := extractRetryAfter(err); retryAfter > 0 {
		if r.fits(elapsed, retryAfter) {
			return retryAfter, true
		}
	}
	if !r.fits(elapsed, backoff) {
		return 0, false
	}
	return backoff, true
}

func (r *retryMiddleware) fits(elapsed, wait time.Duration) bool {
	return r.config.MaxElapsedTime == 0 || elapsed+wait <= r.config.MaxElapsedTime
}
