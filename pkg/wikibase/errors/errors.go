package errors

import (
	"fmt"
	"time"
)

var ErrDecode = fmt.Errorf("malformed wire payload")
var ErrValidation = fmt.Errorf("validation error")
var ErrToken = fmt.Errorf("token error")
var ErrConflict = fmt.Errorf("edit conflict")
var ErrRateLimited = fmt.Errorf("rate limited")
var ErrTransport = fmt.Errorf("transport error")
var ErrAmbiguousOutcome = fmt.Errorf("ambiguous write outcome")
var ErrNotFound = fmt.Errorf("not found")
var ErrInternal = fmt.Errorf("internal error")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

// NewDecodeError reports a wire payload that could not be decoded,
// naming the offending field.
func NewDecodeError(field, msg string) error {
	return &myError{
		msg:    fmt.Sprintf("decode %s: %s", field, msg),
		target: ErrDecode,
	}
}

// NewValidationError reports a violated structural invariant, naming
// the offending field.
func NewValidationError(field, msg string) error {
	return &myError{
		msg:    fmt.Sprintf("invalid %s: %s", field, msg),
		target: ErrValidation,
	}
}

func NewTokenError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrToken,
	}
}

func NewTransportError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrTransport,
	}
}

func NewAmbiguousOutcomeError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrAmbiguousOutcome,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewInternalError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrInternal,
	}
}

// ConflictError reports a concurrent edit that could not be resolved by
// rebasing. Local and Upstream carry both divergent sides so that the
// caller can decide how to reconcile.
type ConflictError struct {
	msg      string
	Local    any
	Upstream any
}

func (e *ConflictError) Error() string        { return e.msg }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func NewConflictError(msg string, local, upstream any) error {
	return &ConflictError{
		msg:      msg,
		Local:    local,
		Upstream: upstream,
	}
}

// RateLimitError reports store-signalled overload. RetryAfter is the
// server-suggested delay, or zero when the server gave none.
type RateLimitError struct {
	msg        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string        { return e.msg }
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func NewRateLimitError(msg string, retryAfter time.Duration) error {
	return &RateLimitError{
		msg:        msg,
		RetryAfter: retryAfter,
	}
}

// NewErrorFromAPIResponse maps a MediaWiki API error code to the
// corresponding sentinel. Unknown codes map to ErrInternal so that no
// failure is silently swallowed.
func NewErrorFromAPIResponse(code, info string, retryAfter time.Duration) error {
	switch code {
	case "badtoken", "notoken", "assertuserfailed":
		return NewTokenError(fmt.Sprintf("%s: %s", code, info))
	case "editconflict":
		return &ConflictError{msg: fmt.Sprintf("%s: %s", code, info)}
	case "maxlag", "ratelimited", "readonly":
		return NewRateLimitError(fmt.Sprintf("%s: %s", code, info), retryAfter)
	case "no-such-entity", "invalid-data-value", "modification-failed",
		"failed-save", "invalid-entity-id", "param-illegal", "not-recognized":
		return &myError{
			msg:    fmt.Sprintf("%s: %s", code, info),
			target: ErrValidation,
		}
	}

	return NewInternalError(
		fmt.Sprintf("unknown api error code %q with info %q received", code, info),
	)
}
