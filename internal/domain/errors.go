package domain

import "errors"

// ErrInvalidConfiguration indicates a run was configured in a way that makes
// generation impossible, such as a non-positive chunk size. It is the only
// fatal error of a pipeline run and is always raised before any model call.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrInvalidPolicyTable indicates that an evolution policy table is empty,
// contains duplicates, or carries an unusable prompt template.
var ErrInvalidPolicyTable = errors.New("invalid policy table")
