package timesheet

import "errors"

// Error categories. Every specific error below unwraps to exactly one of them.
var (
	ErrValidation             = errors.New("validation error")
	ErrState                  = errors.New("invalid state")
	ErrAuthorization          = errors.New("not authorized")
	ErrConcurrentModification = errors.New("time entry was modified by another request, reload and retry")
	ErrNotFound               = errors.New("not found")
)

var (
	ErrInvalidInterval  = newError(ErrValidation, "end time is before start time")
	ErrNegativeRate     = newError(ErrValidation, "rate must not be negative")
	ErrInvalidStatus    = newError(ErrValidation, "unknown time entry status")
	ErrDuplicateClockIn = newError(ErrState, "already clocked in for this date")
	ErrNoActiveShift    = newError(ErrState, "no active shift, clock in first")
	ErrNoOpenBreak      = newError(ErrState, "no break is currently open")
	ErrBreakAlreadyOpen = newError(ErrState, "a break is already open")
	ErrInvalidState     = newError(ErrState, "time entry status does not allow this action")
	ErrForbidden        = newError(ErrAuthorization, "not allowed to act on this time entry")
	ErrEntryNotFound    = newError(ErrNotFound, "time entry not found")
)

type domainError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &domainError{kind: kind, msg: msg}
}

func (e *domainError) Error() string { return e.msg }

func (e *domainError) Unwrap() error { return e.kind }
