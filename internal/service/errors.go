package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure. Handlers map each kind onto one HTTP
// status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindRateLimited
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindSendFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSendFailure:
		return "send_failure"
	}
	return "internal"
}

// Error is the typed failure every service method returns. Message is safe
// to show to callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for anything else.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func newError(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Err: cause}
}

func Validation(msg string) *Error   { return newError(KindValidation, msg, nil) }
func RateLimited(msg string) *Error  { return newError(KindRateLimited, msg, nil) }
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return newError(KindForbidden, msg, nil) }
func NotFound(msg string) *Error     { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) *Error     { return newError(KindConflict, msg, nil) }

func SendFailure(msg string, cause error) *Error {
	return newError(KindSendFailure, msg, cause)
}

// Internal wraps an unexpected failure. The caller-facing message is
// always the generic one.
func Internal(op string, cause error) *Error {
	return newError(KindInternal, "request processing failed", fmt.Errorf("%s: %w", op, cause))
}
