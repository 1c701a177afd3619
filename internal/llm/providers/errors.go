package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
)

// classifyErrorType determines ErrorType from HTTP status and provider error codes.
// Provider-specific codes win over the status code, except that a 429
// without a quota code is always a rate limit.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lowerCode := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lowerCode, "quota"):
		return llmerrors.ErrorTypeQuota
	case statusCode == http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "limit"):
		return llmerrors.ErrorTypeRateLimit
	case strings.Contains(lowerCode, "overloaded"):
		return llmerrors.ErrorTypeProvider
	case strings.Contains(lowerCode, "timeout"):
		return llmerrors.ErrorTypeTimeout
	case strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthenticated"):
		return llmerrors.ErrorTypeAuth
	case strings.Contains(lowerCode, "permission") || strings.Contains(lowerCode, "forbidden"):
		return llmerrors.ErrorTypePermission
	}

	return llmerrors.ClassifyStatus(statusCode)
}

// retryAfterSeconds parses a Retry-After header given in seconds.
// HTTP-date values are ignored and yield 0.
func retryAfterSeconds(h http.Header) int {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// transportError classifies failures that happened before any HTTP status was received.
func transportError(provider string, err error) error {
	errType := llmerrors.ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		errType = llmerrors.ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		// Cancellation is the caller's decision and must not be retried.
		return err
	}
	return &llmerrors.ProviderError{
		Provider: provider,
		Message:  err.Error(),
		Type:     errType,
	}
}
