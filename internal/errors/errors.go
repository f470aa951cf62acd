// Package errors provides the typed error values shared by every layer of the
// certificates service. Handlers map codes to HTTP statuses; nothing below the
// handler layer knows about HTTP.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers.
type Code string

const (
	// ErrCodeValidation marks missing or malformed caller input.
	ErrCodeValidation Code = "VALIDATION"
	// ErrCodeNotFound marks a reference to a record that does not exist.
	ErrCodeNotFound Code = "NOT_FOUND"
	// ErrCodeUnauthorized marks an actor whose role does not match the
	// request's current approval gate.
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	// ErrCodeOutOfOrder marks an attempt to fill an approval level while a
	// lower level is still empty.
	ErrCodeOutOfOrder Code = "OUT_OF_ORDER"
	// ErrCodeAlreadyFinal marks a mutation of a terminal (approved or
	// rejected) request.
	ErrCodeAlreadyFinal Code = "ALREADY_FINAL"
	// ErrCodeAlreadyActioned marks a lost write race: the target approval
	// slot was filled by another call between load and persist.
	ErrCodeAlreadyActioned Code = "ALREADY_ACTIONED"
	// ErrCodeConflict marks a state conflict not covered by a more specific code.
	ErrCodeConflict Code = "CONFLICT"
	// ErrCodeInternal marks infrastructure failures.
	ErrCodeInternal Code = "INTERNAL"
)

// Error is a code-carrying error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates a cause with a code and message.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound creates a NOT_FOUND error for a resource and id.
func NotFound(resource, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// InvalidInput creates a VALIDATION error for a named field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// CodeOf extracts the code from an error chain, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MessageOf extracts the caller-facing message from an error chain. Internal
// errors are masked so infrastructure details never reach clients.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) && e.Code != ErrCodeInternal {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error code to the HTTP status the handler should return.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeOutOfOrder, ErrCodeAlreadyFinal, ErrCodeAlreadyActioned, ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
