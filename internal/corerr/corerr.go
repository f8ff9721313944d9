// Package corerr implements the error-kind taxonomy used end-to-end by the
// core (spec.md section 7), generalizing the teacher's status-word-specific
// *SWError/predicate pattern (pkg/ntag424/errors.go) into a single typed
// error usable by every package.
package corerr

import (
	"errors"
	"fmt"
)

// Code is one of the error kinds named in spec.md section 7.
type Code int

const (
	Unknown Code = iota
	InvalidArgument
	DataLoss
	NotFound
	PermissionDenied
	Unauthenticated
	OutOfRange
	Aborted
	Internal
	ResourceExhausted
	FailedPrecondition
	Unimplemented
	Unavailable
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "invalid_argument"
	case DataLoss:
		return "data_loss"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case Unauthenticated:
		return "unauthenticated"
	case OutOfRange:
		return "out_of_range"
	case Aborted:
		return "aborted"
	case Internal:
		return "internal"
	case ResourceExhausted:
		return "resource_exhausted"
	case FailedPrecondition:
		return "failed_precondition"
	case Unimplemented:
		return "unimplemented"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is a Code-carrying error, following the teacher's AuthError.Unwrap()
// / errors.As idiom (pkg/ntag424/auth.go).
type Error struct {
	Code Code
	Op   string // operation name, e.g. "ntag424.ReadData"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e == nil {
		return "corerr: nil"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an *Error with no underlying cause.
func New(code Code, op string) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap builds an *Error wrapping cause. Wrap(code, op, nil) returns nil, so
// callers can write `return corerr.Wrap(corerr.Internal, "op", err)` even
// when err is nil without adding a stray error.
func Wrap(code Code, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: cause}
}

// CodeOf extracts the Code from err, or Unknown if err is not (or does not
// wrap) a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
