package timesheet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const entityType = "time_entry"

// AuditRecorder receives a before/after snapshot of every applied transition.
type AuditRecorder interface {
	Record(ctx context.Context, action, entityType, entityID string, before, after any) error
}

type Service struct {
	Store     StoreAPI
	Policy    Policy
	WeekStart time.Weekday
	Location  *time.Location
	Audit     AuditRecorder
	Now       func() time.Time
	NewID     func() string
}

func NewService(store StoreAPI, policy Policy, weekStart time.Weekday, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		Store:     store,
		Policy:    policy,
		WeekStart: weekStart,
		Location:  loc,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Today is the current calendar day in the company time zone.
func (s *Service) Today() time.Time {
	return DateOf(s.Now(), s.Location)
}

func (s *Service) ClockIn(ctx context.Context, employeeID string) (TimeEntry, error) {
	if _, err := s.Store.OpenEntry(ctx, employeeID); err == nil {
		return TimeEntry{}, ErrDuplicateClockIn
	} else if !errors.Is(err, ErrNotFound) {
		return TimeEntry{}, err
	}

	now := s.Now()
	entry := NewEntry(s.NewID(), employeeID, DateOf(now, s.Location), now)
	created, err := s.Store.CreateEntry(ctx, entry)
	if err != nil {
		return TimeEntry{}, err
	}
	s.record(ctx, "time_entry.clock_in", nil, created)
	return created, nil
}

func (s *Service) StartBreak(ctx context.Context, employeeID string) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.break_start", s.openEntry(employeeID), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.StartBreak(now)
	})
}

func (s *Service) EndBreak(ctx context.Context, employeeID string) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.break_end", s.openEntry(employeeID), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.EndBreak(now)
	})
}

func (s *Service) ClockOut(ctx context.Context, employeeID string) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.clock_out", s.openEntry(employeeID), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.ClockOut(now, s.Policy)
	})
}

func (s *Service) Submit(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.submit", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.Submit(now)
	})
}

func (s *Service) EmployeeApprove(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.employee_approve", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.EmployeeApprove(now, s.Policy)
	})
}

func (s *Service) ManagerApprove(ctx context.Context, approver, employeeID string, date time.Time) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.manager_approve", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.ManagerApprove(approver, now, s.Policy)
	})
}

func (s *Service) Reject(ctx context.Context, approver, employeeID string, date time.Time, note string) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.reject", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.Reject(approver, note, now)
	})
}

func (s *Service) Reopen(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.reopen", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.Reopen(now)
	})
}

func (s *Service) UpdateDetails(ctx context.Context, employeeID string, date time.Time, details Details) (TimeEntry, error) {
	return s.mutate(ctx, "time_entry.update", s.entryOn(employeeID, date), func(e TimeEntry, now time.Time) (TimeEntry, error) {
		return e.UpdateDetails(details, now)
	})
}

func (s *Service) Get(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	entry, err := s.Store.GetEntry(ctx, employeeID, date)
	if err != nil {
		return TimeEntry{}, err
	}
	entries := []TimeEntry{entry}
	if err := FillWeekTotals(ctx, s.Store, entries, s.WeekStart); err != nil {
		return TimeEntry{}, err
	}
	return entries[0], nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]TimeEntry, error) {
	entries, err := s.Store.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := FillWeekTotals(ctx, s.Store, entries, s.WeekStart); err != nil {
		return nil, err
	}
	return entries, nil
}

type loader func(ctx context.Context) (TimeEntry, error)

func (s *Service) openEntry(employeeID string) loader {
	return func(ctx context.Context) (TimeEntry, error) {
		entry, err := s.Store.OpenEntry(ctx, employeeID)
		if errors.Is(err, ErrNotFound) {
			return TimeEntry{}, ErrNoActiveShift
		}
		return entry, err
	}
}

func (s *Service) entryOn(employeeID string, date time.Time) loader {
	return func(ctx context.Context) (TimeEntry, error) {
		return s.Store.GetEntry(ctx, employeeID, date)
	}
}

// mutate loads the entry, applies one transition and writes it back guarded
// by the version that was read.
func (s *Service) mutate(ctx context.Context, action string, load loader, apply func(TimeEntry, time.Time) (TimeEntry, error)) (TimeEntry, error) {
	current, err := load(ctx)
	if err != nil {
		return TimeEntry{}, err
	}
	next, err := apply(current, s.Now())
	if err != nil {
		return TimeEntry{}, err
	}
	weekTotal, err := weekTotalWith(ctx, s.Store, next, s.WeekStart)
	if err != nil {
		return TimeEntry{}, err
	}
	next.WeekTotal = weekTotal
	saved, err := s.Store.UpdateEntry(ctx, next, current.Version)
	if err != nil {
		return TimeEntry{}, err
	}
	s.record(ctx, action, current, saved)
	return saved, nil
}

func (s *Service) record(ctx context.Context, action string, before any, after TimeEntry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, action, entityType, after.ID, before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entryId", after.ID, "err", err)
	}
}
