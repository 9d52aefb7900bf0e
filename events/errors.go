package events

import "errors"

// Code identifies a domain error condition. The set is closed: callers
// switch on it to choose a transport-level response and a retry strategy.
type Code string

const (
	// CodeStartEndRequired - title, start or end missing from the request.
	CodeStartEndRequired Code = "start_end_required"

	// CodeEndBeforeStart - a list query whose end is not after its start.
	CodeEndBeforeStart Code = "end_before_start"

	// CodeNotFound - no reservation with the given id.
	CodeNotFound Code = "event_not_found"

	// CodeOverlaps - at least one requested night is already taken.
	CodeOverlaps Code = "event_overlaps"

	// CodeMaxDays - the reservation is longer than MaxDays nights.
	CodeMaxDays Code = "event_max_days"

	// CodeMinDays - the reservation is shorter than one night.
	CodeMinDays Code = "event_min_days"

	// CodeValidation - malformed dates, start after end, or unknown title.
	CodeValidation Code = "event_validation"

	// CodeUpdated - the caller's version is stale; the reservation was
	// modified concurrently by someone else.
	CodeUpdated Code = "event_updated"
)

// Data carries the code-specific fields of an Error.
type Data struct {
	MaxDays int `json:"maxDays,omitempty"`
	MinDays int `json:"minDays,omitempty"`
}

// Error is a typed domain error. Everything the engine raises on purpose is
// an *Error; anything else (unexpected cancellation reasons, transport
// failures) passes through as a plain wrapped error and is not recoverable
// by the caller.
type Error struct {
	Code    Code
	Message string
	Data    Data
}

func (e *Error) Error() string { return e.Message }

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HasCode reports whether err is (or wraps) a domain Error with the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	return errors.As(err, &domainErr) && domainErr.Code == code
}
