// Package domainerrors provides coded errors for the service boundary.
// Services wrap store and provider failures with a code so transport
// layers can map them to responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and the HTTP layer.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"

	// CodeManualReview marks enrichment runs aborted because a provider
	// failure requires human review before the entity can proceed.
	CodeManualReview Code = "manual_review_required"
)

// Error carries a code, a caller-safe message, and an optional cause.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Message returns the caller-safe description.
func (e *Error) Message() string {
	return e.message
}

// Code returns the classification of this error.
func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the code from an error chain, defaulting to internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}
