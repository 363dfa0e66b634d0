// Package errors defines the application error type handlers translate
// into HTTP responses. Services attach a stable code and status at the
// point of failure; transport code only ever calls FromError.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed failure with a stable machine-readable code and the
// HTTP status it maps to. Err carries the cause for logs; it is never
// serialized.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error without a cause.
func New(code string, status int, message string) *Error {
	return Wrap(nil, code, status, message)
}

// Wrap builds an Error carrying err as its cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Sentinel errors shared across services. Compare by Code, not by
// pointer: services hand out Clones with specialized messages.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrShiftFull          = New("SHIFT_FULL", http.StatusConflict, "shift already at required staff count")
)

// FromError coerces any error into an *Error. Unknown error types are
// wrapped as ErrInternal so no raw error text leaks into responses.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies a sentinel with an overriding message, keeping code and
// status intact. An empty message keeps the sentinel's.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	out := *err
	if message != "" {
		out.Message = message
	}
	return &out
}
