// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP status mapping.
type Code string

const (
	CodeValidation   Code = "VALIDATION"    // missing/empty required field
	CodeNotFound     Code = "NOT_FOUND"     // operation on a nonexistent id
	CodeInvalidState Code = "INVALID_STATE" // state-machine precondition violated
	CodeForbidden    Code = "FORBIDDEN"     // caller lacks required permission
	CodeStorage      Code = "STORAGE"       // persistence failure, retryable by the caller
	CodeConsistency  Code = "CONSISTENCY"   // compensation failed; manual reconciliation required
)

// Error carries a taxonomy code, a caller-facing message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy code to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(message string) *Error   { return New(CodeValidation, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func InvalidState(message string) *Error { return New(CodeInvalidState, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }

// CodeOf returns the taxonomy code of err, or CodeStorage for untagged errors
// (anything that escapes a service untagged came from the storage layer).
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a taxonomy code to the status handlers respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
