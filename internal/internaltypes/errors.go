package internaltypes

import (
	"errors"
	"fmt"

	"github.com/example/amenity-reservations/internal/domain/timerange"
)

// Kind classifies failures surfaced to callers.
type Kind string

const (
	KindInvalidRequest      Kind = "INVALID_REQUEST"
	KindNotFound            Kind = "NOT_FOUND"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindSlotTaken           Kind = "SLOT_TAKEN"
	KindSlotBlocked         Kind = "SLOT_BLOCKED"
	KindPolicyDenied        Kind = "POLICY_DENIED"
	KindIdempotencyConflict Kind = "IDEMPOTENCY_CONFLICT"
	KindVersionConflict     Kind = "VERSION_CONFLICT"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindWindowNotOpen       Kind = "CHECK_IN_WINDOW_NOT_OPEN"
	KindWindowClosed        Kind = "CHECK_IN_WINDOW_CLOSED"
	KindAlreadyCheckedIn    Kind = "ALREADY_CHECKED_IN"
	KindNotCheckedIn        Kind = "NOT_CHECKED_IN"
	KindAlreadyCheckedOut   Kind = "ALREADY_CHECKED_OUT"
	KindUnavailable         Kind = "UNAVAILABLE"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrSlotTaken           = &Error{Kind: KindSlotTaken}
	ErrSlotBlocked         = &Error{Kind: KindSlotBlocked}
	ErrPolicyDenied        = &Error{Kind: KindPolicyDenied}
	ErrIdempotencyConflict = &Error{Kind: KindIdempotencyConflict}
	ErrVersionConflict     = &Error{Kind: KindVersionConflict}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrWindowNotOpen       = &Error{Kind: KindWindowNotOpen}
	ErrWindowClosed        = &Error{Kind: KindWindowClosed}
	ErrAlreadyCheckedIn    = &Error{Kind: KindAlreadyCheckedIn}
	ErrNotCheckedIn        = &Error{Kind: KindNotCheckedIn}
	ErrAlreadyCheckedOut   = &Error{Kind: KindAlreadyCheckedOut}
	ErrUnavailable         = &Error{Kind: KindUnavailable}
)

type Error struct {
	Kind    Kind
	Message string
	// Conflict is the competing window for SlotTaken/SlotBlocked.
	Conflict *timerange.Range
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the client may retry with the same idempotency token.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindVersionConflict || e.Kind == KindUpstreamUnavailable
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Conflict(kind Kind, window timerange.Range, format string, args ...any) *Error {
	w := window
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Conflict: &w}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
