package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen            Status = "open"
	StatusClockedOut      Status = "clocked_out"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

var Statuses = []Status{
	StatusOpen,
	StatusClockedOut,
	StatusPendingApproval,
	StatusCompleted,
	StatusApproved,
	StatusRejected,
}

func ParseStatus(value string) (Status, error) {
	for _, status := range Statuses {
		if string(status) == value {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Break struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  *int       `json:"duration,omitempty"`
}

func (b Break) Open() bool {
	return b.EndTime == nil
}

type TimeEntry struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employeeId"`
	Date             time.Time       `json:"date"`
	ClockIn          *time.Time      `json:"clockIn,omitempty"`
	ClockOut         *time.Time      `json:"clockOut,omitempty"`
	Breaks           []Break         `json:"breaks"`
	TotalWorkTime    int             `json:"totalWorkTime"`
	TotalBreakTime   int             `json:"totalBreakTime"`
	WeekTotal        int             `json:"weekTotal"`
	JobCode          string          `json:"jobCode"`
	Rate             decimal.Decimal `json:"rate"`
	Shift            string          `json:"shift"`
	Status           Status          `json:"status"`
	EmployeeApproval bool            `json:"employeeApproval"`
	ManagerApproval  bool            `json:"managerApproval"`
	ApprovedBy       string          `json:"approvedBy,omitempty"`
	ApprovalDate     *time.Time      `json:"approvalDate,omitempty"`
	TimesheetNotes   string          `json:"timesheetNotes"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OnBreak reports whether the last break has not been closed yet.
func (e TimeEntry) OnBreak() bool {
	if len(e.Breaks) == 0 {
		return false
	}
	return e.Breaks[len(e.Breaks)-1].Open()
}

// Clone returns a copy that shares no pointers or slices with e.
func (e TimeEntry) Clone() TimeEntry {
	out := e
	out.ClockIn = cloneTime(e.ClockIn)
	out.ClockOut = cloneTime(e.ClockOut)
	out.ApprovalDate = cloneTime(e.ApprovalDate)
	if e.Breaks != nil {
		out.Breaks = make([]Break, len(e.Breaks))
		for i, b := range e.Breaks {
			out.Breaks[i] = Break{StartTime: b.StartTime, EndTime: cloneTime(b.EndTime)}
			if b.Duration != nil {
				d := *b.Duration
				out.Breaks[i].Duration = &d
			}
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Details are the classification fields an owner or manager may edit before submission.
type Details struct {
	JobCode        *string          `json:"jobCode"`
	Rate           *decimal.Decimal `json:"rate"`
	Shift          *string          `json:"shift"`
	TimesheetNotes *string          `json:"timesheetNotes"`
}

// Filter selects entries for listing and export. Zero values match everything.
type Filter struct {
	From       time.Time
	To         time.Time
	EmployeeID string
	Department string
	Status     Status
}

func (f Filter) Matches(e TimeEntry) bool {
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// Policy holds the company approval settings.
type Policy struct {
	RequireEmployeeApproval bool
	AutoSubmit              bool
}

func DefaultPolicy() Policy {
	return Policy{RequireEmployeeApproval: true}
}
