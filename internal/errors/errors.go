package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies a domain error so handlers can pick an HTTP status
// without inspecting message text.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

// Error carries a user-facing message plus an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "internal error"
}

func (e *Error) Unwrap() error { return e.Err }

// Validation signals a missing or malformed request field. Maps to 400.
func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

// NotFound signals a missing user/assignment/match row. Maps to 404.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

// Conflict signals a business-rule violation such as a double reveal or an
// exhausted assignment quota. Maps to 400.
func Conflict(msg string) error { return &Error{Kind: KindConflict, Msg: msg} }

// Unauthorized maps to 401.
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }

// Forbidden signals a role mismatch, e.g. a female user calling a
// male-only transition. Maps to 403.
func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Msg: msg} }

// Internal wraps a datastore or infrastructure failure. Maps to 500; the
// driver message stays in the body for operator diagnosis.
func Internal(err error) error { return &Error{Kind: KindInternal, Err: err} }

// HTTPStatus converts any error into the response status code.
// Infra errors from gorm/context are recognized directly so repositories
// can bubble them up unwrapped.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var de *Error
	if errors.As(err, &de) {
		switch de.Kind {
		case KindValidation, KindConflict:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindUnauthorized:
			return http.StatusUnauthorized
		case KindForbidden:
			return http.StatusForbidden
		}
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == k
}
