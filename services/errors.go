package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies a domain error so the HTTP layer can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a user-facing domain error. Anything that is not an *Error is
// treated as internal and never shown to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports missing or malformed input.
func Invalid(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

// Unauthorized reports bad credentials.
func Unauthorized(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

// Forbidden reports a wrong role or ownership.
func Forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

// NotFound reports a missing entity.
func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

// Conflict reports an action that is invalid for the current state.
func Conflict(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// notFoundOr maps gorm's not-found to a domain error and passes anything else through.
func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(format, args...)
	}
	return err
}
