// Package service contains the business logic of the application.
package service

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrExpired       = errors.New("expired")
	ErrConfiguration = errors.New("configuration error")
	ErrUpstream      = errors.New("upstream error")
)

// ErrDisabled is the cause of ConfigurationErrors raised by optional
// components that are switched off.
var ErrDisabled = errors.New("feature disabled")

// Error is a classified failure carrying a caller-safe message. Cause holds
// the detail for logs and diagnostic responses.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Is makes errors.Is(err, ErrNotFound) and friends work.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}
