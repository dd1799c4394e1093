// Package model contains the general data models and interfaces for the registrar.
package model // import "github.com/creaproof/provenance-registrar/pkg/model"

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is a stable machine-readable classification of a registrar error.
type ErrorKind string

const (
	// ErrorKindValidation indicates malformed input. Never retried automatically.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindInvalidTransition indicates a state transition attempted from a
	// state that does not permit it.
	ErrorKindInvalidTransition ErrorKind = "invalid_transition"

	// ErrorKindAuthFailure indicates identity verification failed.
	ErrorKindAuthFailure ErrorKind = "auth_failure"

	// ErrorKindAuthorizationDenied indicates a capability check failed.
	ErrorKindAuthorizationDenied ErrorKind = "authorization_denied"

	// ErrorKindLedgerUnavailable indicates a transient network/node failure.
	// Safe to retry the same operation.
	ErrorKindLedgerUnavailable ErrorKind = "ledger_unavailable"

	// ErrorKindLedgerRejected indicates the node synchronously refused the
	// transaction. Terminal for that attempt.
	ErrorKindLedgerRejected ErrorKind = "ledger_rejected"

	// ErrorKindNotFound indicates the referenced work or transaction does not exist.
	ErrorKindNotFound ErrorKind = "not_found"
)

// Error is a registrar error carrying a stable kind alongside the message.
type Error struct {
	kind ErrorKind
	msg  string
}

// NewError creates a new Error of the given kind
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a new validation error
func NewValidationError(format string, args ...interface{}) *Error {
	return NewError(ErrorKindValidation, format, args...)
}

// NewInvalidTransitionError creates a new invalid transition error
func NewInvalidTransitionError(format string, args ...interface{}) *Error {
	return NewError(ErrorKindInvalidTransition, format, args...)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(format string, args ...interface{}) *Error {
	return NewError(ErrorKindNotFound, format, args...)
}

func (e *Error) Error() string {
	return e.msg
}

// Kind returns the machine-readable kind for this error
func (e *Error) Kind() ErrorKind {
	return e.kind
}

// KindOf returns the ErrorKind of an error, unwrapping any pkg/errors
// wrapping applied along the way. Returns an empty kind for nil or
// non-registrar errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if rerr, ok := errors.Cause(err).(*Error); ok {
		return rerr.kind
	}
	return ""
}

// IsErrorKind returns true if the error is a registrar error of the given kind
func IsErrorKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
