package retry

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
)

// ExponentialBackoff calculates the delay after the given attempt.
// The base delay grows by Multiplier per attempt and is capped at MaxInterval.
// With UseJitter the result is drawn uniformly from [0, base] (full jitter).
// Returns zero for non-positive attempt numbers.
func ExponentialBackoff(attempt int, config configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := config.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if config.MaxInterval > 0 && backoff > config.MaxInterval {
			backoff = config.MaxInterval
			break
		}
	}

	if config.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter is appropriate here
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}

// extractRetryAfter returns the server-provided delay carried by err, if any.
func extractRetryAfter(err error) time.Duration {
	var provider RetryAfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}
	return 0
}
