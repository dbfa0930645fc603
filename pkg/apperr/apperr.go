package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	// Validation: malformed, missing or contradictory input. Rejected before
	// any write.
	Validation Kind = iota + 1
	// Guard: the operation is not valid in the entity's current lifecycle
	// state (e.g. reviewing an unpaid proposal).
	Guard
	// Conflict: uniqueness violation or double application (e.g. policy
	// already issued).
	Conflict
	// NotFound: unknown proposal/payment/policy id.
	NotFound
	// External: an external dependency misbehaved (signature mismatch,
	// amount mismatch).
	External
)

// Error carries a kind alongside the message so handlers can pick a status
// code without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// newf formats via fmt.Errorf so %w verbs wrap as usual; the wrapped error
// stays reachable through Unwrap.
func newf(kind Kind, format string, args ...interface{}) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: err.Error(), Err: errors.Unwrap(err)}
}

func Validationf(format string, args ...interface{}) *Error {
	return newf(Validation, format, args...)
}

func Guardf(format string, args ...interface{}) *Error {
	return newf(Guard, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newf(Conflict, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(NotFound, format, args...)
}

func Externalf(format string, args ...interface{}) *Error {
	return newf(External, format, args...)
}

// String returns the wire label for the kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Guard:
		return "guard"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case External:
		return "external"
	default:
		return "internal"
	}
}

// KindOf returns the kind of err, or 0 when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the response status handlers should emit.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Guard, Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case External:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
