package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

var transitions = map[Status][]Status{
	StatusOpen:            {StatusClockedOut},
	StatusClockedOut:      {StatusPendingApproval},
	StatusPendingApproval: {StatusCompleted, StatusApproved, StatusRejected},
	StatusCompleted:       {StatusApproved, StatusRejected},
	StatusRejected:        {StatusClockedOut},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (e TimeEntry) moveTo(to Status) (TimeEntry, error) {
	if !CanTransition(e.Status, to) {
		return e, ErrInvalidState
	}
	e.Status = to
	return e, nil
}

// NewEntry starts the day's entry for employeeID at now.
func NewEntry(id, employeeID string, date, now time.Time) TimeEntry {
	clockIn := now
	return TimeEntry{
		ID:         id,
		EmployeeID: employeeID,
		Date:       dateOnly(date),
		ClockIn:    &clockIn,
		Breaks:     []Break{},
		Rate:       decimal.Zero,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// The transitions below work on a clone and return it, so a failed
// transition never leaves a half-applied receiver behind.

func (e TimeEntry) StartBreak(now time.Time) (TimeEntry, error) {
	if e.Status != StatusOpen || e.ClockIn == nil {
		return e, ErrNoActiveShift
	}
	if e.OnBreak() {
		return e, ErrBreakAlreadyOpen
	}
	if now.Before(*e.ClockIn) {
		return e, ErrInvalidInterval
	}
	if n := len(e.Breaks); n > 0 && now.Before(*e.Breaks[n-1].EndTime) {
		return e, ErrInvalidInterval
	}
	next := e.Clone()
	next.Breaks = append(next.Breaks, Break{StartTime: now})
	next.UpdatedAt = now
	return next, nil
}

func (e TimeEntry) EndBreak(now time.Time) (TimeEntry, error) {
	if !e.OnBreak() {
		return e, ErrNoOpenBreak
	}
	next := e.Clone()
	if err := closeBreak(&next.Breaks[len(next.Breaks)-1], now); err != nil {
		return e, err
	}
	next.recompute()
	next.UpdatedAt = now
	return next, nil
}

// ClockOut closes the shift. A break still open at clock-out is closed at now.
func (e TimeEntry) ClockOut(now time.Time, policy Policy) (TimeEntry, error) {
	if e.Status != StatusOpen || e.ClockIn == nil {
		return e, ErrNoActiveShift
	}
	if !now.After(*e.ClockIn) {
		return e, ErrInvalidInterval
	}
	next := e.Clone()
	if next.OnBreak() {
		if err := closeBreak(&next.Breaks[len(next.Breaks)-1], now); err != nil {
			return e, err
		}
	}
	for _, b := range next.Breaks {
		if b.EndTime.After(now) {
			return e, ErrInvalidInterval
		}
	}
	clockOut := now
	next.ClockOut = &clockOut
	next, err := next.moveTo(StatusClockedOut)
	if err != nil {
		return e, err
	}
	if policy.AutoSubmit {
		if next, err = next.moveTo(StatusPendingApproval); err != nil {
			return e, err
		}
	}
	next.recompute()
	next.UpdatedAt = now
	return next, nil
}

func (e TimeEntry) Submit(now time.Time) (TimeEntry, error) {
	if e.Status != StatusClockedOut {
		return e, ErrInvalidState
	}
	next, err := e.Clone().moveTo(StatusPendingApproval)
	if err != nil {
		return e, err
	}
	next.UpdatedAt = now
	return next, nil
}

func (e TimeEntry) EmployeeApprove(now time.Time, policy Policy) (TimeEntry, error) {
	if !awaitingApproval(e.Status) {
		return e, ErrInvalidState
	}
	next := e.Clone()
	next.EmployeeApproval = true
	return next.settleApproval(now, policy, e)
}

func (e TimeEntry) ManagerApprove(approver string, now time.Time, policy Policy) (TimeEntry, error) {
	if !awaitingApproval(e.Status) {
		return e, ErrInvalidState
	}
	next := e.Clone()
	next.ManagerApproval = true
	next.ApprovedBy = approver
	return next.settleApproval(now, policy, e)
}

func (e TimeEntry) Reject(approver, note string, now time.Time) (TimeEntry, error) {
	if !awaitingApproval(e.Status) {
		return e, ErrInvalidState
	}
	next, err := e.Clone().moveTo(StatusRejected)
	if err != nil {
		return e, err
	}
	next.ApprovedBy = approver
	next.TimesheetNotes = note
	next.UpdatedAt = now
	return next, nil
}

// Reopen sends a rejected entry back to the employee for correction.
func (e TimeEntry) Reopen(now time.Time) (TimeEntry, error) {
	if e.Status != StatusRejected {
		return e, ErrInvalidState
	}
	next, err := e.Clone().moveTo(StatusClockedOut)
	if err != nil {
		return e, err
	}
	next.EmployeeApproval = false
	next.ManagerApproval = false
	next.ApprovedBy = ""
	next.ApprovalDate = nil
	next.UpdatedAt = now
	return next, nil
}

func (e TimeEntry) UpdateDetails(details Details, now time.Time) (TimeEntry, error) {
	if e.Status != StatusOpen && e.Status != StatusClockedOut {
		return e, ErrInvalidState
	}
	if details.Rate != nil && details.Rate.IsNegative() {
		return e, ErrNegativeRate
	}
	next := e.Clone()
	if details.JobCode != nil {
		next.JobCode = *details.JobCode
	}
	if details.Rate != nil {
		next.Rate = *details.Rate
	}
	if details.Shift != nil {
		next.Shift = *details.Shift
	}
	if details.TimesheetNotes != nil {
		next.TimesheetNotes = *details.TimesheetNotes
	}
	next.UpdatedAt = now
	return next, nil
}

func (e TimeEntry) settleApproval(now time.Time, policy Policy, original TimeEntry) (TimeEntry, error) {
	target := StatusCompleted
	if e.ManagerApproval && (e.EmployeeApproval || !policy.RequireEmployeeApproval) {
		target = StatusApproved
	}
	next := e
	if next.Status != target {
		var err error
		if next, err = next.moveTo(target); err != nil {
			return original, err
		}
	}
	if target == StatusApproved {
		approvedAt := now
		next.ApprovalDate = &approvedAt
	}
	next.UpdatedAt = now
	return next, nil
}

func awaitingApproval(status Status) bool {
	return status == StatusPendingApproval || status == StatusCompleted
}

func closeBreak(b *Break, now time.Time) error {
	minutes, err := DurationMinutes(b.StartTime, now)
	if err != nil {
		return err
	}
	end := now
	b.EndTime = &end
	b.Duration = &minutes
	return nil
}

// recompute refreshes the derived duration fields from the punch data.
func (e *TimeEntry) recompute() {
	e.TotalBreakTime = TotalBreakMinutes(e.Breaks)
	e.TotalWorkTime = 0
	if e.ClockIn != nil && e.ClockOut != nil {
		if minutes, err := TotalWorkMinutes(*e.ClockIn, *e.ClockOut, e.Breaks); err == nil {
			e.TotalWorkTime = minutes
		}
	}
}
