// Package domainerrors provides coded errors shared by all domain services.
//
// Services construct these with New/Wrap; the HTTP layer translates codes to
// status codes in exactly one place. Stores do not use this package directly;
// they return pkg/platform/sentinel errors (infrastructure facts) which
// services translate into coded domain errors.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers. Codes are part of the service
// contract: handlers map them to HTTP statuses and clients branch on them.
type Code string

const (
	// CodeNotFound signals a referenced entity, user, or claim does not exist.
	CodeNotFound Code = "not_found"
	// CodeForbidden signals the caller lacks owner or administrator privilege.
	CodeForbidden Code = "forbidden"
	// CodeUnauthorized signals a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeValidation signals well-formed input that violates a domain rule.
	CodeValidation Code = "validation"
	// CodeBadRequest signals malformed input (unparseable body, bad id).
	CodeBadRequest Code = "bad_request"
	// CodeConflict signals the operation lost to concurrent or prior state:
	// an entity already owned, a duplicate pending claim.
	CodeConflict Code = "conflict"
	// CodeTooManyRequests signals a rate limit was hit; retry after backoff.
	CodeTooManyRequests Code = "too_many_requests"
	// CodeInvariantViolation signals a domain model invariant was broken.
	// Services usually convert this to CodeValidation at the boundary.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeConfiguration signals a programmer error in wiring, such as an
	// entity kind missing from the registry. Never a user-facing condition.
	CodeConfiguration Code = "configuration"
	// CodeStorage signals the underlying transaction could not complete.
	// Safe to retry the whole operation from scratch.
	CodeStorage Code = "storage"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Message is safe to show to callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a coded error with a caller-visible message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// Is is an alias for HasCode; it reads better in handler branches.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost caller-visible message, or a generic one.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
