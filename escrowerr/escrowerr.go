// Package escrowerr implements the error taxonomy used across the escrow
// coordinator. Every error that crosses a component boundary (C1-C8) is
// classified into one of a fixed set of Kinds so that callers — chiefly the
// trade state machine and the chat adapter boundary — can decide whether to
// retry, surface a message, or leave state untouched without inspecting
// error strings.
package escrowerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of state-machine decisions and
// user-facing surfacing. The set is closed and mirrors the error taxonomy
// table of the coordinator's design.
type Kind uint8

const (
	// Unknown is the zero value and should never be constructed directly.
	Unknown Kind = iota

	// Validation indicates malformed user input: a bad amount, wrong
	// address syntax, or the wrong role pressing a button. State is left
	// unchanged.
	Validation

	// Unauthorized indicates a caller acted outside their role, e.g. a
	// non-buyer pressing the buyer's button. Callback acknowledgment is
	// silent; state is left unchanged.
	Unauthorized

	// NotFound indicates no active escrow (or room, or contract) exists
	// for the request.
	NotFound

	// Conflict indicates a race was lost: two callers attempted a
	// mutually exclusive mutation (role selection, approval) and this
	// caller was second.
	Conflict

	// ResourceExhausted indicates no resource was available to satisfy
	// the request, e.g. no room left in the pool.
	ResourceExhausted

	// Transient indicates a chain RPC error that is safe to retry: a
	// timeout or a nonce race. Callers may retry bounded or surface a
	// "contact admin" message if retries are exhausted.
	Transient

	// Reverted indicates the chain rejected the call outright: owner
	// mismatch, insufficient balance. Never retried.
	Reverted

	// Internal indicates an unexpected failure that should be logged
	// with context and surfaced to the user only as a generic message.
	Internal
)

// String renders the Kind the way it is named in the error taxonomy.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION"
	case Unauthorized:
		return "UNAUTHORIZED"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case Transient:
		return "TRANSIENT_CHAIN"
	case Reverted:
		return "ONCHAIN_REVERT"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether the taxonomy allows automatic retry of the
// operation that produced this Kind.
func (k Kind) Retryable() bool {
	return k == Transient
}

// Error is the concrete error type returned across component boundaries. It
// carries a Kind for programmatic dispatch, a Message safe to surface
// verbatim to end users, and an optional wrapped cause for logs.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error implements the error interface. The message embeds the cause only
// when one is present, for log consumption; callers that want the
// user-safe text alone should use Message directly.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validationf constructs a Validation-kind error.
func Validationf(format string, args ...interface{}) *Error {
	return newErr(Validation, fmt.Sprintf(format, args...), nil)
}

// Unauthorizedf constructs an Unauthorized-kind error.
func Unauthorizedf(format string, args ...interface{}) *Error {
	return newErr(Unauthorized, fmt.Sprintf(format, args...), nil)
}

// NotFoundf constructs a NotFound-kind error.
func NotFoundf(format string, args ...interface{}) *Error {
	return newErr(NotFound, fmt.Sprintf(format, args...), nil)
}

// Conflictf constructs a Conflict-kind error.
func Conflictf(format string, args ...interface{}) *Error {
	return newErr(Conflict, fmt.Sprintf(format, args...), nil)
}

// ResourceExhaustedf constructs a ResourceExhausted-kind error.
func ResourceExhaustedf(format string, args ...interface{}) *Error {
	return newErr(ResourceExhausted, fmt.Sprintf(format, args...), nil)
}

// Transientf wraps cause as a Transient-kind error.
func Transientf(cause error, format string, args ...interface{}) *Error {
	return newErr(Transient, fmt.Sprintf(format, args...), cause)
}

// Revertedf wraps cause as a Reverted-kind error.
func Revertedf(cause error, format string, args ...interface{}) *Error {
	return newErr(Reverted, fmt.Sprintf(format, args...), cause)
}

// Internalf wraps cause as an Internal-kind error. The message passed here
// is the safe, generic text shown to end users; cause carries the detail
// for logs only.
func Internalf(cause error, format string, args ...interface{}) *Error {
	return newErr(Internal, fmt.Sprintf(format, args...), cause)
}

// As reports whether err (or any error it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
