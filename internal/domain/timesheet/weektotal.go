package timesheet

import (
	"context"
	"time"
)

// EntryLister is the read side of StoreAPI.
type EntryLister interface {
	ListEntries(ctx context.Context, filter Filter) ([]TimeEntry, error)
}

type weekKey struct {
	employeeID string
	weekStart  time.Time
}

// FillWeekTotals sets WeekTotal on every entry from the full week stored for
// that employee, so totals stay correct when entries outside the batch change.
func FillWeekTotals(ctx context.Context, lister EntryLister, entries []TimeEntry, startDay time.Weekday) error {
	totals := map[weekKey]int{}
	for i := range entries {
		start, end := WeekBounds(entries[i].Date, startDay)
		key := weekKey{employeeID: entries[i].EmployeeID, weekStart: start}
		total, ok := totals[key]
		if !ok {
			week, err := lister.ListEntries(ctx, Filter{From: start, To: end, EmployeeID: key.employeeID})
			if err != nil {
				return err
			}
			total = WeekTotal(week, start, end)
			totals[key] = total
		}
		entries[i].WeekTotal = total
	}
	return nil
}

// weekTotalWith computes the week total for entry as if it were already stored.
func weekTotalWith(ctx context.Context, lister EntryLister, entry TimeEntry, startDay time.Weekday) (int, error) {
	start, end := WeekBounds(entry.Date, startDay)
	week, err := lister.ListEntries(ctx, Filter{From: start, To: end, EmployeeID: entry.EmployeeID})
	if err != nil {
		return 0, err
	}
	replaced := false
	for i := range week {
		if week[i].Date.Equal(entry.Date) {
			week[i] = entry
			replaced = true
		}
	}
	if !replaced {
		week = append(week, entry)
	}
	return WeekTotal(week, start, end), nil
}
