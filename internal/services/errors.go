package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to clients. Match with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication failed")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Error carries a client-facing message for one of the error kinds.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func forbiddenf(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func notFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func authenticationf(format string, args ...any) error {
	return newError(ErrAuthentication, format, args...)
}
