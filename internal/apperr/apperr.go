// Package apperr classifies failures into the kinds the HTTP layer knows how to report.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindGeneration
	KindConflict
	KindTooLarge
	KindRateLimited
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Validation(msg string) *Error { return newError(KindValidation, msg, nil) }

func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

func Auth(msg string) *Error { return newError(KindAuth, msg, nil) }

func Conflict(msg string) *Error { return newError(KindConflict, msg, nil) }

func TooLarge(msg string) *Error { return newError(KindTooLarge, msg, nil) }

func RateLimited(msg string) *Error { return newError(KindRateLimited, msg, nil) }

func Generation(msg string, cause error) *Error { return newError(KindGeneration, msg, cause) }

func Internal(cause error) *Error { return newError(KindInternal, "internal server error", cause) }

// KindOf reports the kind of err, treating anything unclassified as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage is the text safe to return to a client. Internal causes are never exposed.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Error()
	}
	return "internal server error"
}
