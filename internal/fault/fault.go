// Package fault defines the error taxonomy shared by the verification engine.
//
// Every failure the engine can observe is classified into one of four codes:
//
//   - CONFIGURATION: inventory or group resolution failed. Fatal to the run,
//     never to the process.
//   - TRANSPORT: the remote shell or HTTP request failed. Local to a single
//     comparator call.
//   - MISMATCH: the observed state does not meet the expected state.
//   - UNEXPECTED: anything else raised inside a check predicate.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes verification errors.
type Code string

const (
	// CodeConfiguration indicates the inventory could not produce a connection.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeTransport indicates a remote shell or HTTP transport failure.
	CodeTransport Code = "TRANSPORT"

	// CodeMismatch indicates a comparator concluded the host state is wrong.
	CodeMismatch Code = "MISMATCH"

	// CodeUnexpected indicates an error or panic inside a check predicate.
	CodeUnexpected Code = "UNEXPECTED"
)

// Error is a classified verification error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configuration creates a CONFIGURATION error.
func Configuration(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Transport wraps a transport failure.
func Transport(message string, err error) *Error {
	return &Error{Code: CodeTransport, Message: message, Err: err}
}

// Unexpected wraps an error raised inside a predicate.
func Unexpected(err error) *Error {
	return &Error{Code: CodeUnexpected, Message: "verification error", Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
// Unclassified errors report CodeUnexpected.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnexpected
}

// IsConfiguration returns true if err is a CONFIGURATION error.
func IsConfiguration(err error) bool {
	return err != nil && CodeOf(err) == CodeConfiguration
}

// IsTransport returns true if err is a TRANSPORT error.
func IsTransport(err error) bool {
	return err != nil && CodeOf(err) == CodeTransport
}
