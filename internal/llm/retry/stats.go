package retry

import (
	"sync/atomic"
	"time"
)

// retryStats holds lock-free counters of middleware activity.
type retryStats struct {
	totalAttempts      atomic.Int64
	successfulRetries  atomic.Int64
	failedRetries      atomic.Int64
	rateLimitedRetries atomic.Int64
	maxBackoff         atomic.Int64 // nanoseconds
}

// Stats is a point-in-time snapshot of retry activity.
type Stats struct {
	TotalAttempts     int64 `json:"total_attempts"`
	SuccessfulRetries int64 `json:"successful_retries"`
	FailedRetries     int64 `json:"failed_retries"`

	// RateLimitedRetries counts backoffs caused by rate limiting.
	RateLimitedRetries int64 `json:"rate_limited_retries"`

	MaxBackoff time.Duration `json:"max_backoff"`
}

func (s *retryStats) recordBackoff(d time.Duration) {
	for {
		current := s.maxBackoff.Load()
		if int64(d) <= current || s.maxBackoff.CompareAndSwap(current, int64(d)) {
			return
		}
	}
}

func (s *retryStats) snapshot() Stats {
	return Stats{
		TotalAttempts:      s.totalAttempts.Load(),
		SuccessfulRetries:  s.successfulRetries.Load(),
		FailedRetries:      s.failedRetries.Load(),
		RateLimitedRetries: s.rateLimitedRetries.Load(),
		MaxBackoff:         time.Duration(s.maxBackoff.Load()),
	}
}
