package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the domain layer. Services attach human-readable
// messages via the constructors below; handlers map them with errors.Is.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError carries a caller-facing message on top of a sentinel.
type StatusError struct {
	kind    error
	message string
}

func (e *StatusError) Error() string { return e.message }

// Unwrap exposes the sentinel for errors.Is.
func (e *StatusError) Unwrap() error { return e.kind }

// NotFoundf builds a not-found error with a caller-facing message.
func NotFoundf(format string, args ...any) error {
	return &StatusError{kind: ErrNotFound, message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation error with a caller-facing message.
func Validationf(format string, args ...any) error {
	return &StatusError{kind: ErrValidation, message: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds an authorization veto with a caller-facing message.
func Forbiddenf(format string, args ...any) error {
	return &StatusError{kind: ErrForbidden, message: fmt.Sprintf(format, args...)}
}

// Duplicatef builds a duplicate-entry error with a caller-facing message.
func Duplicatef(format string, args ...any) error {
	return &StatusError{kind: ErrDuplicate, message: fmt.Sprintf(format, args...)}
}

// RespondError maps domain errors to the failure envelope. Authorization
// vetoes surface as 403, validation and duplicate failures as 422, missing
// resources as 404. Anything unrecognised becomes an opaque 500 so internal
// detail never reaches the caller.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, messageOf(err, "Resource not found."))
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusUnprocessableEntity, messageOf(err, "Validation failed."))
	case errors.Is(err, ErrDuplicate):
		Fail(w, http.StatusUnprocessableEntity, messageOf(err, "Duplicate entry."))
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, messageOf(err, "Forbidden."))
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, messageOf(err, "Unauthenticated."))
	default:
		Fail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func messageOf(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.message
	}
	return fallback
}
