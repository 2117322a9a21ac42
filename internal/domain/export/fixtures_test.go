package export

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/timesheet"
)

type staticEntries []timesheet.TimeEntry

func (s staticEntries) ListEntries(ctx context.Context, filter timesheet.Filter) ([]timesheet.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []timesheet.TimeEntry
	for _, entry := range s {
		if filter.Matches(entry) {
			out = append(out, entry.Clone())
		}
	}
	return out, nil
}

type failingDirectory struct{ employee.Directory }

func (d failingDirectory) Lookup(ctx context.Context, id string) (employee.Employee, error) {
	if id == "e-broken" {
		return employee.Employee{}, errors.New("directory timeout")
	}
	return d.Directory.Lookup(ctx, id)
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func clock(d, h, m int) *time.Time {
	t := time.Date(2024, 3, d, h, m, 0, 0, time.UTC)
	return &t
}

func workedEntry(id, employeeID string, d int) timesheet.TimeEntry {
	e := timesheet.NewEntry(id, employeeID, day(d), *clock(d, 9, 0))
	e, _ = e.StartBreak(*clock(d, 12, 0))
	e, _ = e.EndBreak(*clock(d, 12, 30))
	e, _ = e.ClockOut(*clock(d, 17, 0), timesheet.DefaultPolicy())
	e.Rate = decimal.RequireFromString("20.00")
	e.JobCode = "OPS"
	return e
}

func fixtureEntries() staticEntries {
	approved := workedEntry("t1", "e1", 4)
	approved, _ = approved.Submit(*clock(4, 17, 5))
	approved, _ = approved.EmployeeApprove(*clock(4, 17, 6), timesheet.DefaultPolicy())
	approved, _ = approved.ManagerApprove("m1", *clock(4, 18, 0), timesheet.DefaultPolicy())

	noted := workedEntry("t2", "e2", 4)
	noted.TimesheetNotes = "left early, \"doctor\"\nback tomorrow"

	open := timesheet.NewEntry("t3", "e-gone", day(5), *clock(5, 8, 0))

	return staticEntries{open, noted, approved, workedEntry("t4", "e1", 5), workedEntry("t5", "e-broken", 5)}
}

func fixtureDirectory() employee.Directory {
	return failingDirectory{employee.NewMemoryDirectory(
		employee.Employee{ID: "e1", FirstName: "Zoe", LastName: "Adams", Department: "Operations", Position: "Operator"},
		employee.Employee{ID: "e2", FirstName: "Ann", LastName: "Baker", Department: "Support", Position: "Agent"},
		employee.Employee{ID: "m1", FirstName: "Mia", LastName: "Chen", Department: "Operations", Position: "Manager"},
	)}
}

func fixtureAggregator() *Aggregator {
	return NewAggregator(fixtureEntries(), fixtureDirectory(), time.Monday, time.UTC)
}
