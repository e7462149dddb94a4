// Package apperrors defines the error taxonomy shared by the workflow,
// its services, and the HTTP layer.
//
// Go Pattern: Instead of exception classes, Go uses values that implement
// the error interface. A single struct with a Kind field lets callers
// branch on the category with errors.As while still wrapping the cause
// with %w so nothing gets lost.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the category of an application error.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindExtraction    Kind = "extraction_error"
	KindAnalysis      Kind = "analysis_error"
	KindRewrite       Kind = "rewrite_error"
	KindConfiguration Kind = "configuration_error"
	KindUnknown       Kind = "unknown_error"
)

// Error is the error type returned at component boundaries.
type Error struct {
	Kind    Kind
	Message string // user-facing message
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

func Extraction(message string, cause error) *Error {
	return New(KindExtraction, message, cause)
}

func Analysis(message string, cause error) *Error {
	return New(KindAnalysis, message, cause)
}

func Rewrite(message string, cause error) *Error {
	return New(KindRewrite, message, cause)
}

func Configuration(message string) *Error {
	return New(KindConfiguration, message, nil)
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err. Errors outside the
// taxonomy fall back to err.Error().
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
