package timesheet

import (
	"context"
	"time"
)

// StoreAPI persists time entries keyed by (employeeID, date).
//
// UpdateEntry must apply the write only when the stored version still equals
// expectedVersion and return ErrConcurrentModification otherwise.
type StoreAPI interface {
	CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error)
	OpenEntry(ctx context.Context, employeeID string) (TimeEntry, error)
	UpdateEntry(ctx context.Context, entry TimeEntry, expectedVersion int) (TimeEntry, error)
	ListEntries(ctx context.Context, filter Filter) ([]TimeEntry, error)
}
