package export

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"timesheets/internal/domain/employee"
	"timesheets/internal/domain/timesheet"
)

// Unknown replaces employee attributes that could not be resolved.
const Unknown = "Unknown"

const defaultLookupConcurrency = 8

// Row is one timesheet flattened for rendering. Every renderer consumes the
// same rows so the three formats carry identical information.
type Row struct {
	EntryID           string
	EmployeeID        string
	EmployeeName      string
	Department        string
	Position          string
	Date              time.Time
	ClockIn           *time.Time
	ClockOut          *time.Time
	Breaks            []timesheet.Break
	TotalWorkMinutes  int
	TotalBreakMinutes int
	WeekTotalMinutes  int
	JobCode           string
	Rate              decimal.Decimal
	Shift             string
	Status            timesheet.Status
	EmployeeApproval  bool
	ManagerApproval   bool
	ApprovedByID      string
	ApprovedBy        string
	ApprovalDate      *time.Time
	Notes             string
}

type Aggregator struct {
	Entries     timesheet.EntryLister
	Directory   employee.Directory
	WeekStart   time.Weekday
	Location    *time.Location
	Concurrency int
}

func NewAggregator(entries timesheet.EntryLister, directory employee.Directory, weekStart time.Weekday, loc *time.Location) *Aggregator {
	return &Aggregator{
		Entries:     entries,
		Directory:   directory,
		WeekStart:   weekStart,
		Location:    loc,
		Concurrency: defaultLookupConcurrency,
	}
}

// Rows returns the rows matching filter ordered by date, employee name and
// employee id. Lookup failures degrade to Unknown and never fail the batch.
func (a *Aggregator) Rows(ctx context.Context, filter timesheet.Filter) ([]Row, error) {
	entries, err := a.Entries.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := timesheet.FillWeekTotals(ctx, a.Entries, entries, a.WeekStart); err != nil {
		return nil, err
	}

	people, err := a.resolve(ctx, entries)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		emp, found := people[entry.EmployeeID]
		if filter.Department != "" && (!found || !strings.EqualFold(emp.Department, filter.Department)) {
			continue
		}
		rows = append(rows, a.row(entry, emp, found, people))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].EmployeeName != rows[j].EmployeeName {
			return rows[i].EmployeeName < rows[j].EmployeeName
		}
		return rows[i].EmployeeID < rows[j].EmployeeID
	})
	return rows, nil
}

// resolve looks up every distinct employee and approver id once.
func (a *Aggregator) resolve(ctx context.Context, entries []timesheet.TimeEntry) (map[string]employee.Employee, error) {
	ids := map[string]struct{}{}
	for _, entry := range entries {
		ids[entry.EmployeeID] = struct{}{}
		if entry.ApprovedBy != "" {
			ids[entry.ApprovedBy] = struct{}{}
		}
	}

	var (
		mu     sync.Mutex
		people = make(map[string]employee.Employee, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	limit := a.Concurrency
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	g.SetLimit(limit)
	for id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emp, err := a.Directory.Lookup(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Warn("employee lookup failed", "employeeId", id, "err", err)
				return nil
			}
			mu.Lock()
			people[id] = emp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return people, nil
}

func (a *Aggregator) row(entry timesheet.TimeEntry, emp employee.Employee, found bool, people map[string]employee.Employee) Row {
	row := Row{
		EntryID:           entry.ID,
		EmployeeID:        entry.EmployeeID,
		EmployeeName:      Unknown,
		Department:        Unknown,
		Position:          Unknown,
		Date:              entry.Date,
		ClockIn:           a.local(entry.ClockIn),
		ClockOut:          a.local(entry.ClockOut),
		TotalWorkMinutes:  entry.TotalWorkTime,
		TotalBreakMinutes: entry.TotalBreakTime,
		WeekTotalMinutes:  entry.WeekTotal,
		JobCode:           entry.JobCode,
		Rate:              entry.Rate,
		Shift:             entry.Shift,
		Status:            entry.Status,
		EmployeeApproval:  entry.EmployeeApproval,
		ManagerApproval:   entry.ManagerApproval,
		ApprovedByID:      entry.ApprovedBy,
		ApprovedBy:        entry.ApprovedBy,
		ApprovalDate:      a.local(entry.ApprovalDate),
		Notes:             entry.TimesheetNotes,
	}
	if found {
		row.EmployeeName = valueOr(emp.FullName(), Unknown)
		row.Department = valueOr(emp.Department, Unknown)
		row.Position = valueOr(emp.Position, Unknown)
	}
	if approver, ok := people[entry.ApprovedBy]; ok && approver.FullName() != "" {
		row.ApprovedBy = approver.FullName()
	}
	for _, b := range entry.Clone().Breaks {
		b.StartTime = b.StartTime.In(a.location())
		b.EndTime = a.local(b.EndTime)
		row.Breaks = append(row.Breaks, b)
	}
	return row
}

func (a *Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a *Aggregator) local(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(a.location())
	return &v
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

type Summary struct {
	Entries           int                      `json:"entries"`
	Employees         int                      `json:"employees"`
	TotalWorkMinutes  int                      `json:"totalWorkMinutes"`
	TotalBreakMinutes int                      `json:"totalBreakMinutes"`
	ByStatus          map[timesheet.Status]int `json:"byStatus"`
	EstimatedPay      decimal.Decimal          `json:"estimatedPay"`
}

var minutesPerHour = decimal.NewFromInt(60)

// Summarize totals rows. Pay is rate times worked hours, rounded to cents.
func Summarize(rows []Row) Summary {
	summary := Summary{ByStatus: map[timesheet.Status]int{}, EstimatedPay: decimal.Zero}
	employees := map[string]struct{}{}
	for _, row := range rows {
		summary.Entries++
		employees[row.EmployeeID] = struct{}{}
		summary.TotalWorkMinutes += row.TotalWorkMinutes
		summary.TotalBreakMinutes += row.TotalBreakMinutes
		summary.ByStatus[row.Status]++
		pay := row.Rate.Mul(decimal.NewFromInt(int64(row.TotalWorkMinutes))).Div(minutesPerHour)
		summary.EstimatedPay = summary.EstimatedPay.Add(pay)
	}
	summary.Employees = len(employees)
	summary.EstimatedPay = summary.EstimatedPay.Round(2)
	return summary
}
