package services

import (
	"errors"
	"net/http"
)

// Code is the machine-readable category of a domain error.
type Code string

const (
	CodeUnauthenticated          Code = "UNAUTHENTICATED"
	CodeOrganizationUnresolvable Code = "ORGANIZATION_UNRESOLVABLE"
	CodeForbidden                Code = "FORBIDDEN"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeValidationFailed         Code = "VALIDATION_FAILED"
	CodeInternal                 Code = "INTERNAL"
)

// HTTPStatus maps the code to a response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeOrganizationUnresolvable, CodeForbidden, CodeInvalidTransition:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error. Every refusal the services return is an *Error;
// anything else reaching a caller is an infrastructure failure.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code. An invalid transition is also a Forbidden.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return t.Code == CodeForbidden && e.Code == CodeInvalidTransition
}

// Sentinels for errors.Is. Do not mutate; use the constructors to attach detail.
var (
	ErrUnauthenticated          = &Error{Code: CodeUnauthenticated, Message: "authentication required"}
	ErrOrganizationUnresolvable = &Error{Code: CodeOrganizationUnresolvable, Message: "organization cannot be resolved"}
	ErrForbidden                = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound                 = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidTransition        = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrValidationFailed         = &Error{Code: CodeValidationFailed, Message: "validation failed"}
)

func newError(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func unauthenticated(message string) *Error {
	return newError(CodeUnauthenticated, message, nil)
}

func forbidden(message string) *Error {
	return newError(CodeForbidden, message, nil)
}

func notFound(what string) *Error {
	return newError(CodeNotFound, what+" not found", nil)
}

func validationFailed(field, message string) *Error {
	return newError(CodeValidationFailed, message, map[string]string{"field": field})
}

// CodeOf returns the code of the first *Error in err's chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsForbidden reports whether err is a refusal on authorization grounds,
// including invalid transitions.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsDomain reports whether err carries a domain code.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
