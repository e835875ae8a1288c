// Package observatory provides a Go client for the Observatory execution
// tracking API.
package observatory

import (
	"errors"
	"fmt"
)

// Error represents an error from the Observatory API with the HTTP status
// code and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("observatory: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Error codes returned by the server's execution context boundary.
const (
	CodeMissingExecutionID      = "MISSING_EXECUTION_ID"
	CodeMissingParentSpanID     = "MISSING_PARENT_SPAN_ID"
	CodeSpanCreationFailed      = "EXECUTION_SPAN_CREATION_FAILED"
	CodeMissingExecutionContext = "MISSING_EXECUTION_CONTEXT"
)

// ErrorCode returns the server error code carried by err, or empty string
// if err is not an API error.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

// IsMissingExecutionContext returns true if the server rejected the request
// because no execution context was established: either a missing header
// (enforcing servers) or an untracked request hitting a context-requiring
// operation (permissive servers).
func IsMissingExecutionContext(err error) bool {
	switch ErrorCode(err) {
	case CodeMissingExecutionID, CodeMissingParentSpanID, CodeMissingExecutionContext:
		return true
	}
	return false
}
