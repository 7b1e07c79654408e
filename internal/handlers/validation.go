package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Shared validator instance; it caches struct metadata
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest validates a request struct and reports the first failing field
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Errorf("validation failed: %s: %s", ve[0].Field(), formatValidationError(ve[0]))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// ValidateVar validates a single value against a tag expression, e.g. "required,email"
func ValidateVar(value interface{}, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Errorf("validation failed: %s", formatValidationError(ve[0]))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
