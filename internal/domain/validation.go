package domain

import (
	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a struct against its validate tags using the shared
// domain validator. Packages outside domain use it for their own config types.
func Validate(v any) error { return validate.Struct(v) }
