// Package apperr defines the business error kinds returned to API callers.
//
// Every business-rule violation is an *Error whose Unwrap returns one of the
// sentinel kinds below, so callers can branch with errors.Is. Errors that do
// not wrap a kind are treated as internal failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientFunds indicates a points balance is too low.
	ErrInsufficientFunds = errors.New("insufficient points")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a user-displayable business error.
type Error struct {
	kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.kind
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, Message: msg}
}

func Validation(msg string) error { return newError(ErrValidation, msg) }

func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func Conflict(msg string) error { return newError(ErrConflict, msg) }

func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, fmt.Sprintf(format, args...))
}

func InsufficientFunds(msg string) error { return newError(ErrInsufficientFunds, msg) }

func NotFound(msg string) error { return newError(ErrNotFound, msg) }

func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, fmt.Sprintf(format, args...))
}

// IsBusiness reports whether err is one of the business error kinds.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrNotFound)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a user. Internal errors collapse to
// a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong"
}
