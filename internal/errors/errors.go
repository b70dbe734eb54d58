// Package errors consolidates error definitions for the whole project.
//
// It provides:
//   - Sentinel errors for all error conditions
//   - Error category checking functions
//   - Error wrapping utilities
//   - A ValidationErrors collector used by the merge validator
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Not found errors
	ErrNotFound        = errors.New("not found")
	ErrRunNotFound     = errors.New("sync run not found")
	ErrManagerNotFound = errors.New("no manager registered")

	// Input errors
	ErrInvalidSince  = errors.New("invalid since value")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
	ErrTypeMismatch  = errors.New("field type mismatch")
	ErrInvalidAction = errors.New("invalid action")
	ErrUnknownPlane  = errors.New("unknown plane")

	// Merge errors
	ErrUnmergeable = errors.New("states have conflicting changes and cannot be auto-merged")

	// Rollback errors
	ErrNotReversible = errors.New("sync run is not reversible")
	ErrDryRunSource  = errors.New("dry runs modify nothing and cannot be rolled back")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrManagerNotFound)
}

// IsInput returns true if err is an input error the caller can correct.
func IsInput(err error) bool {
	return errors.Is(err, ErrInvalidSince) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrUnknownPlane)
}

// IsBlocked returns true if err means a rollback cannot proceed at all,
// as opposed to failing partway through.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrNotReversible) ||
		errors.Is(err, ErrDryRunSource) ||
		errors.Is(err, ErrRunNotFound)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewTypeMismatch creates a type mismatch error for a field.
func NewTypeMismatch(field, expected string, got interface{}) error {
	return fmt.Errorf("field %s: expected %s, got %T: %w", field, expected, got, ErrTypeMismatch)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
