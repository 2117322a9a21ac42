package timesheet

import (
	"context"
	"time"

	"timesheets/internal/domain/auth"
)

// Workflow applies role and ownership rules before delegating to Service.
// The state machine itself knows nothing about roles.
type Workflow struct {
	Service *Service
}

func NewWorkflow(service *Service) *Workflow {
	return &Workflow{Service: service}
}

// punchTarget resolves whose entry a punch applies to. Only admins may punch
// for someone else.
func punchTarget(actor auth.Actor, employeeID string) (string, error) {
	if employeeID == "" || actor.Owns(employeeID) {
		if actor.EmployeeID == "" {
			return "", ErrForbidden
		}
		return actor.EmployeeID, nil
	}
	if !actor.IsAdmin() {
		return "", ErrForbidden
	}
	return employeeID, nil
}

func (w *Workflow) ClockIn(ctx context.Context, actor auth.Actor, employeeID string) (TimeEntry, error) {
	target, err := punchTarget(actor, employeeID)
	if err != nil {
		return TimeEntry{}, err
	}
	return w.Service.ClockIn(ctx, target)
}

func (w *Workflow) StartBreak(ctx context.Context, actor auth.Actor, employeeID string) (TimeEntry, error) {
	target, err := punchTarget(actor, employeeID)
	if err != nil {
		return TimeEntry{}, err
	}
	return w.Service.StartBreak(ctx, target)
}

func (w *Workflow) EndBreak(ctx context.Context, actor auth.Actor, employeeID string) (TimeEntry, error) {
	target, err := punchTarget(actor, employeeID)
	if err != nil {
		return TimeEntry{}, err
	}
	return w.Service.EndBreak(ctx, target)
}

func (w *Workflow) ClockOut(ctx context.Context, actor auth.Actor, employeeID string) (TimeEntry, error) {
	target, err := punchTarget(actor, employeeID)
	if err != nil {
		return TimeEntry{}, err
	}
	return w.Service.ClockOut(ctx, target)
}

func (w *Workflow) Submit(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (TimeEntry, error) {
	if !actor.Owns(employeeID) && !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.Submit(ctx, employeeID, date)
}

func (w *Workflow) UpdateDetails(ctx context.Context, actor auth.Actor, employeeID string, date time.Time, details Details) (TimeEntry, error) {
	if !actor.Owns(employeeID) && !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.UpdateDetails(ctx, employeeID, date, details)
}

// EmployeeApprove is the employee's sign-off on their own timesheet.
func (w *Workflow) EmployeeApprove(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (TimeEntry, error) {
	if !actor.Owns(employeeID) {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.EmployeeApprove(ctx, employeeID, date)
}

func (w *Workflow) ManagerApprove(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (TimeEntry, error) {
	if !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.ManagerApprove(ctx, approverID(actor), employeeID, date)
}

func (w *Workflow) Reject(ctx context.Context, actor auth.Actor, employeeID string, date time.Time, note string) (TimeEntry, error) {
	if !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.Reject(ctx, approverID(actor), employeeID, date, note)
}

func (w *Workflow) Reopen(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (TimeEntry, error) {
	if !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.Reopen(ctx, employeeID, date)
}

// Get lets employees read only their own entries.
func (w *Workflow) Get(ctx context.Context, actor auth.Actor, employeeID string, date time.Time) (TimeEntry, error) {
	if !actor.Owns(employeeID) && !actor.IsManager() {
		return TimeEntry{}, ErrForbidden
	}
	return w.Service.Get(ctx, employeeID, date)
}

func (w *Workflow) List(ctx context.Context, actor auth.Actor, filter Filter) ([]TimeEntry, error) {
	if !actor.IsManager() {
		if filter.EmployeeID != "" && !actor.Owns(filter.EmployeeID) {
			return nil, ErrForbidden
		}
		if actor.EmployeeID == "" {
			return nil, ErrForbidden
		}
		filter.EmployeeID = actor.EmployeeID
	}
	return w.Service.List(ctx, filter)
}

// approverID prefers the employee id so approvers resolve through the
// employee directory on export.
func approverID(actor auth.Actor) string {
	if actor.EmployeeID != "" {
		return actor.EmployeeID
	}
	return actor.UserID
}
