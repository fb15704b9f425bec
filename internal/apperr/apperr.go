// Package apperr defines the failure kinds the core reports to callers.
// Every expected failure is an *Error sentinel; anything else is internal.
package apperr

import (
	"errors"
	"net/http"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// Error is an expected, caller-recoverable failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUnauthenticated    = newError(KindUnauthenticated, "UNAUTHENTICATED", "could not validate credentials")
	ErrInvalidCredentials = newError(KindValidation, "INVALID_CREDENTIALS", "incorrect email or password")

	ErrForbidden            = newError(KindForbidden, "FORBIDDEN", "you are not a member of this house")
	ErrNotCreator           = newError(KindForbidden, "FORBIDDEN", "only the house creator can delete the house")
	ErrForbiddenCreatorExit = newError(KindValidation, "FORBIDDEN_CREATOR_EXIT", "house creator cannot exit the house, delete it instead")

	ErrHouseNotFound = newError(KindNotFound, "HOUSE_NOT_FOUND", "house not found")
	ErrTaskNotFound  = newError(KindNotFound, "TASK_NOT_FOUND", "task not found")
	ErrUserNotFound  = newError(KindNotFound, "USER_NOT_FOUND", "user not found")

	ErrAlreadyMember   = newError(KindValidation, "ALREADY_MEMBER", "user is already a member of this house")
	ErrEmailTaken      = newError(KindValidation, "EMAIL_TAKEN", "email already registered")
	ErrInvalidDeadline = newError(KindValidation, "INVALID_DEADLINE", "invalid deadline format")

	ErrMembershipConflict = newError(KindConflict, "MEMBERSHIP_CONFLICT", "user is already a member of this house")
)

// Validation returns a VALIDATION error with a caller-facing message.
func Validation(message string) *Error {
	return newError(KindValidation, "VALIDATION", message)
}

// KindOf reports the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the transport answers with.
// Conflicts are reported like validation failures.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
