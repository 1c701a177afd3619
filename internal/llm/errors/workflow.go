package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// WorkflowError is the classified form of an LLM failure as seen by callers
// that only need a type, a code and a retry decision.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`      // Error classification
	Message   string         `json:"message"`   // Human-readable message
	Code      string         `json:"code"`      // Provider-specific error code
	Retryable bool           `json:"retryable"` // Whether to retry
	Details   map[string]any `json:"details"`   // Additional context
	Cause     error          `json:"-"`         // Underlying error
}

// Error returns formatted error string with type and code context.
func (e *WorkflowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

// ShouldRetry returns the explicit retry recommendation.
func (e *WorkflowError) ShouldRetry() bool {
	return e.Retryable
}

// Classify transforms an arbitrary LLM call error into a WorkflowError.
// Typed errors are inspected first, then sentinels and context errors, and
// finally the message text.
func Classify(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return &WorkflowError{
			Type:      providerErr.Type,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
			},
			Cause: err,
		}
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   rateLimitErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rateLimitErr.Provider,
				"retry_after": rateLimitErr.RetryAfter,
				"local":       rateLimitErr.LocalLimit,
			},
			Cause: err,
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newClassified(ErrorTypeTimeout, "TIMEOUT", true, err)
	case errors.Is(err, context.Canceled):
		return newClassified(ErrorTypeUnknown, "CANCELED", false, err)
	case errors.Is(err, ErrRateLimitExceeded):
		return newClassified(ErrorTypeRateLimit, "RATE_LIMIT", true, err)
	case errors.Is(err, ErrProviderUnavailable):
		return newClassified(ErrorTypeProvider, "PROVIDER_UNAVAILABLE", true, err)
	case errors.Is(err, ErrMaxRetriesExceeded):
		return newClassified(ErrorTypeProvider, "MAX_RETRIES", false, err)
	case errors.Is(err, ErrEmptyCompletion), errors.Is(err, ErrInvalidResponse):
		return newClassified(ErrorTypeProvider, "INVALID_RESPONSE", false, err)
	case errors.Is(err, ErrUnknownProvider):
		return newClassified(ErrorTypeValidation, "UNKNOWN_PROVIDER", false, err)
	}

	return classifyMessage(err)
}

func newClassified(t ErrorType, code string, retryable bool, err error) *WorkflowError {
	return &WorkflowError{
		Type:      t,
		Message:   err.Error(),
		Code:      code,
		Retryable: retryable,
		Cause:     err,
	}
}

// classifyMessage handles untyped errors by message pattern.
func classifyMessage(err error) *WorkflowError {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit"):
		return newClassified(ErrorTypeRateLimit, "RATE_LIMIT", true, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return newClassified(ErrorTypeTimeout, "TIMEOUT", true, err)
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication"):
		return newClassified(ErrorTypeAuth, "AUTH_FAILED", false, err)
	case strings.Contains(msg, "forbidden") || strings.Contains(msg, "permission"):
		return newClassified(ErrorTypePermission, "PERMISSION_DENIED", false, err)
	case strings.Contains(msg, "quota"):
		return newClassified(ErrorTypeQuota, "QUOTA_EXCEEDED", false, err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection"):
		return newClassified(ErrorTypeNetwork, "NETWORK_ERROR", true, err)
	default:
		return newClassified(ErrorTypeUnknown, "UNKNOWN", false, err)
	}
}
