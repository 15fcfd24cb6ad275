package errors

import (
	"errors"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrAuth         = errors.New("invalid username or password")
	ErrUnauthorized = errors.New("not logged in")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrUnavailable is returned when the external observation feed cannot
	// be reached or answered with something we could not use.
	ErrUnavailable = errors.New("observation feed unavailable")
)

type kind struct {
	err    error
	name   string
	status int
}

var kinds = []kind{
	{ErrValidation, "validation_error", http.StatusBadRequest},
	{ErrAuth, "auth_error", http.StatusUnauthorized},
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrForbidden, "forbidden", http.StatusForbidden},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrUnavailable, "unavailable", http.StatusServiceUnavailable},
}

// Status maps err onto an HTTP status code. Errors outside the taxonomy are
// internal errors.
func Status(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Kind returns the machine readable name of err's category.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal_error"
}

// Is and As forward to the standard library so callers importing this
// package under an alias don't also need the stdlib one.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
