package engine

import (
	"errors"
	"fmt"
)

// RegistrationError represents a check that cannot be added to a registry.
type RegistrationError struct {
	// Code identifies the error category.
	Code RegistrationErrorCode

	// CheckID identifies the offending check.
	CheckID string

	// Message is a human-readable description.
	Message string
}

// RegistrationErrorCode categorizes registration errors.
type RegistrationErrorCode string

const (
	// ErrCodeDuplicateID indicates two checks share an identifier.
	ErrCodeDuplicateID RegistrationErrorCode = "DUPLICATE_ID"

	// ErrCodeInvalidWeight indicates a non-positive weight.
	ErrCodeInvalidWeight RegistrationErrorCode = "INVALID_WEIGHT"

	// ErrCodeMissingID indicates an empty identifier.
	ErrCodeMissingID RegistrationErrorCode = "MISSING_ID"

	// ErrCodeMissingPredicate indicates a check with nothing to run.
	ErrCodeMissingPredicate RegistrationErrorCode = "MISSING_PREDICATE"
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.CheckID != "" {
		return fmt.Sprintf("%s: %s (check=%q)", e.Code, e.Message, e.CheckID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicateError returns true if err is a duplicate identifier error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateError(err error) bool {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicateID
	}
	return false
}

// PanicError wraps a value recovered from a panicking predicate.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
