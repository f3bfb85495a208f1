// Package apperr defines the error taxonomy shared by every component:
// caller mistakes, missing authentication, unknown resources, remote
// provider failures and credential-store failures. Handlers map a Kind to
// an HTTP status exactly once, at the response boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	// KindValidation marks malformed caller input.
	KindValidation Kind = iota
	// KindUnauthenticated marks a missing or invalid session or delegation token.
	KindUnauthenticated
	// KindNotFound marks an unknown message, thread or credential id.
	KindNotFound
	// KindProvider marks a failed remote API call.
	KindProvider
	// KindPersistence marks a credential-store I/O or corruption failure.
	KindPersistence
)

// String returns the canonical name used in JSON error envelopes.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindProvider:
		return "provider_error"
	case KindPersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps a Kind to the status code the HTTP surface reports.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kinded error that optionally wraps an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with a formatted message and no cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err. Errors outside the taxonomy are
// reported as provider failures so nothing leaks through unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
