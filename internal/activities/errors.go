package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

// Application error types reported to the workflow.
const (
	// ErrorTypeValidation tags malformed activity input.
	ErrorTypeValidation = "Validation"

	// ErrorTypeInvalidConfiguration tags a run whose configuration makes
	// generation impossible.
	ErrorTypeInvalidConfiguration = "InvalidConfiguration"
)

// ErrActivityValidation is returned when activity input validation fails.
var ErrActivityValidation = errors.New("activity input validation failed")

// nonRetryable wraps cause as a Temporal non-retryable application error.
// Generation failures never reach here; they are reported as absence.
func nonRetryable(errType string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, errType, cause)
}
