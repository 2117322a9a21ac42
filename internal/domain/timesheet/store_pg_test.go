package timesheet_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/db"
)

func newPGService(t *testing.T) (*timesheet.Service, *timesheet.Store, *time.Time) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "../../../migrations"))

	store := timesheet.NewStore(pool)
	svc := timesheet.NewService(store, timesheet.DefaultPolicy(), time.Monday, time.UTC)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	return svc, store, &now
}

func TestPostgresStoreLifecycle(t *testing.T) {
	svc, store, now := newPGService(t)
	ctx := context.Background()
	employeeID := "pg-" + uuid.NewString()

	entry, err := svc.ClockIn(ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Version)

	_, err = svc.ClockIn(ctx, employeeID)
	assert.ErrorIs(t, err, timesheet.ErrDuplicateClockIn)

	*now = now.Add(3 * time.Hour)
	_, err = svc.StartBreak(ctx, employeeID)
	require.NoError(t, err)
	*now = now.Add(30 * time.Minute)
	_, err = svc.EndBreak(ctx, employeeID)
	require.NoError(t, err)
	*now = now.Add(4*time.Hour + 30*time.Minute)
	entry, err = svc.ClockOut(ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, 450, entry.TotalWorkTime)
	assert.Equal(t, 30, entry.TotalBreakTime)
	assert.Equal(t, timesheet.StatusClockedOut, entry.Status)

	stale := entry
	stale.Version = 1
	stale.TimesheetNotes = "stale write"
	_, err = store.UpdateEntry(ctx, stale, 1)
	assert.ErrorIs(t, err, timesheet.ErrConcurrentModification)

	loaded, err := store.GetEntry(ctx, employeeID, entry.Date)
	require.NoError(t, err)
	assert.Equal(t, entry.Version, loaded.Version)
	assert.Empty(t, loaded.TimesheetNotes)
	require.Len(t, loaded.Breaks, 1)
	assert.Equal(t, 30, *loaded.Breaks[0].Duration)

	entries, err := store.ListEntries(ctx, timesheet.Filter{EmployeeID: employeeID, Status: timesheet.StatusClockedOut})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPostgresStoreMissingEntry(t *testing.T) {
	_, store, _ := newPGService(t)
	_, err := store.GetEntry(context.Background(), "pg-"+uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
}
