package eval

import (
	"errors"
	"fmt"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// RuntimeError represents a specification runtime error: an operator
// applied outside its domain, an unresolvable input draw, or an
// exhausted bound. It aborts the current attempt only and never the
// sampling loop.
type RuntimeError struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Ref is the source reference of the failing expression, when the
	// upstream compiler provided one.
	Ref ir.Ref
}

// Code categorizes runtime errors.
type Code string

const (
	// ErrCodeDivisionByZero indicates integer division or modulo by zero.
	ErrCodeDivisionByZero Code = "DIVISION_BY_ZERO"

	// ErrCodeTypeMismatch indicates an operator applied to a value
	// outside its domain.
	ErrCodeTypeMismatch Code = "TYPE_MISMATCH"

	// ErrCodeUnboundName indicates a name with no binding in scope.
	ErrCodeUnboundName Code = "UNBOUND_NAME"

	// ErrCodeOutOfDomain indicates an access past a collection's bounds:
	// head of an empty list, a missing map key or record field.
	ErrCodeOutOfDomain Code = "OUT_OF_DOMAIN"

	// ErrCodeEmptyDomain indicates an input draw from an empty domain.
	ErrCodeEmptyDomain Code = "EMPTY_DOMAIN"

	// ErrCodeBoundExceeded indicates a bounded construction (range,
	// power) exceeded the engine's synthetic bound.
	ErrCodeBoundExceeded Code = "BOUND_EXCEEDED"

	// ErrCodeBadArity indicates an operator or definition applied to the
	// wrong number of arguments.
	ErrCodeBadArity Code = "BAD_ARITY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Ref.IsValid() {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsRuntimeError extracts a RuntimeError from err, unwrapping as needed.
func AsRuntimeError(err error) (*RuntimeError, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func errDivisionByZero(ref ir.Ref) *RuntimeError {
	return &RuntimeError{Code: ErrCodeDivisionByZero, Message: "division by zero", Ref: ref}
}

func errType(op string, want string, got ir.Value, ref ir.Ref) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("%s expects %s, got %s %s", op, want, got.Kind(), ir.Format(got)),
		Ref:     ref,
	}
}

func errUnbound(name string, ref ir.Ref) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUnboundName, Message: fmt.Sprintf("name %q is not bound", name), Ref: ref}
}

func errOutOfDomain(msg string, ref ir.Ref) *RuntimeError {
	return &RuntimeError{Code: ErrCodeOutOfDomain, Message: msg, Ref: ref}
}

func errEmptyDomain(ref ir.Ref) *RuntimeError {
	return &RuntimeError{Code: ErrCodeEmptyDomain, Message: "input drawn from an empty domain", Ref: ref}
}

func errBound(msg string, ref ir.Ref) *RuntimeError {
	return &RuntimeError{Code: ErrCodeBoundExceeded, Message: msg, Ref: ref}
}

func errArity(op string, want, got int, ref ir.Ref) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadArity,
		Message: fmt.Sprintf("%s expects %d arguments, got %d", op, want, got),
		Ref:     ref,
	}
}
