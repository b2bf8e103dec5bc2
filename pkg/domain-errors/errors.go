// Package domainerrors provides coded errors for domain and service layers.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate them into coded errors here so transports can map codes
// to wire responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to branch on outcome.
type Code string

const (
	// CodeInvalidInput marks malformed or out-of-range caller input.
	CodeInvalidInput Code = "invalid_input"

	// CodeNotFound marks a missing entity (visit, client, caregiver, record).
	CodeNotFound Code = "not_found"

	// CodeStateNotSupported marks a state code with no configured rules or
	// aggregator provider. Configuration errors are fatal to the current call
	// and must never be defaulted to another state's rules.
	CodeStateNotSupported Code = "state_not_supported"

	// CodeConflict marks an operation racing a concurrent holder of the same
	// resource, such as a visit already mid-submission.
	CodeConflict Code = "conflict"

	// CodeUnavailable marks a dependency that is temporarily unreachable.
	CodeUnavailable Code = "unavailable"

	// CodeInternal marks unexpected failures with no more specific code.
	CodeInternal Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error. A nil cause returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// As returns the outermost coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the outermost code in the chain, or CodeInternal if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
