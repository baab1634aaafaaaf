// Package apperr carries the error kinds the services return to the edge.
// Kinds reuse grpc codes so the same error can cross either transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind = codes.Code

const (
	Validation   Kind = codes.InvalidArgument
	Conflict     Kind = codes.FailedPrecondition
	NotFound     Kind = codes.NotFound
	Unauthorized Kind = codes.Unauthenticated
	Forbidden    Kind = codes.PermissionDenied
	Internal     Kind = codes.Internal
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind, e.Message)
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validationf(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return New(Forbidden, format, args...)
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return New(Unauthorized, format, args...)
}

// KindOf returns the kind of err, or Internal for errors without one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message is the client-safe text of err. Internal errors are not exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
