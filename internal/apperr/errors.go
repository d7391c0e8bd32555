// Package apperr defines the error kinds every domain operation reports.
package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrValidation    = errors.New("validation")
	ErrNotFound      = errors.New("not_found")
	ErrInvalidState  = errors.New("invalid_state")
	ErrAuthorization = errors.New("authorization")
	ErrConflict      = errors.New("conflict")
)

// Error is a classified failure of a single operation.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newf(kind error, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...interface{}) error {
	return newf(ErrValidation, op, format, args...)
}

func NotFound(op, format string, args ...interface{}) error {
	return newf(ErrNotFound, op, format, args...)
}

func InvalidState(op, format string, args ...interface{}) error {
	return newf(ErrInvalidState, op, format, args...)
}

func Forbidden(op, format string, args ...interface{}) error {
	return newf(ErrAuthorization, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) error {
	return newf(ErrConflict, op, format, args...)
}

// FromDB classifies a gorm error. Unknown errors are wrapped unchanged.
func FromDB(op string, err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: ErrNotFound, Op: op, Message: what + " not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: ErrConflict, Op: op, Message: what + " already exists", Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// KindOf returns the kind sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrInvalidState, ErrAuthorization, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
