package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing failures across the dashboard core.
const (
	// ErrConfig covers configuration loading and validation failures.
	ErrConfig = "CONFIG"
	// ErrTransport covers SSH session failures: connect, auth, DNS, timeout.
	ErrTransport = "TRANSPORT"
	// ErrCommand covers remote commands that ran but exited nonzero.
	ErrCommand = "COMMAND"
	// ErrParse covers remote tool output that is unusable as a whole.
	// Individually malformed fragments are skipped and counted instead.
	ErrParse = "PARSE"
	// ErrMetrics covers the external metrics endpoint: unreachable, timeout,
	// non-2xx status, malformed JSON.
	ErrMetrics = "METRICS"
)

// Error represents a structured error with code, message, suggestion, and optional cause:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrTransport code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrTransport,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var dhErr *Error
	if errors.As(err, &dhErr) {
		return dhErr.Code == code
	}
	return false
}

// Code returns the code of a structured Error, or empty string otherwise.
func Code(err error) string {
	var dhErr *Error
	if errors.As(err, &dhErr) {
		return dhErr.Code
	}
	return ""
}
