// Package models defines the release domain types shared across shiphook services.
package models

import (
	"errors"
	"fmt"
)

// Validation errors surfaced by release metadata checks (400-class failures).
var (
	ErrEmptyVersion        = errors.New("release version cannot be empty")
	ErrNoTargets           = errors.New("release must have at least one target")
	ErrTooManyTargets      = errors.New("too many release targets")
	ErrGeneralNotExclusive = errors.New("general target cannot be combined with other targets")
)

// ValidationError wraps a metadata validation failure with the field context.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}

	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for a metadata field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error originates from release metadata validation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}

	return errors.Is(err, ErrEmptyVersion) ||
		errors.Is(err, ErrNoTargets) ||
		errors.Is(err, ErrTooManyTargets) ||
		errors.Is(err, ErrGeneralNotExclusive)
}
