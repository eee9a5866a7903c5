// Package errs defines the error-kind taxonomy every subsystem boundary
// returns, and the HTTP status mapping for it.
package errs

import (
	"errors"
	"fmt"
)

// Kind distinguishes error categories at every subsystem boundary.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindAuth       Kind = "auth_error"
	KindForbidden  Kind = "forbidden_error"
	KindNotFound   Kind = "not_found_error"
	KindConflict   Kind = "conflict_error"
	KindRiskDenied Kind = "risk_denied"
	KindBreaker    Kind = "breaker_open"
	KindUpstream   Kind = "upstream_error"
	KindVault      Kind = "vault_error"
	KindInternal   Kind = "internal"
)

// Error is the structured error every package boundary returns.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured detail fields and returns the receiver
// for chaining at the call site.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// errors that never crossed a classified boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the status code table in the error handling
// design. Unclassified errors map to 500 like KindInternal.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return 400
	case KindAuth:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindRiskDenied:
		return 422
	case KindBreaker:
		return 503
	case KindUpstream:
		return 502
	case KindVault, KindInternal:
		return 500
	default:
		return 500
	}
}
