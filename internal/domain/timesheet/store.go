package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"timesheets/internal/platform/querier"
)

const uniqueViolation = "23505"

const entryColumns = `
    t.id, t.employee_id, t.work_date, t.clock_in, t.clock_out, t.breaks,
    t.total_work_minutes, t.total_break_minutes, t.week_total_minutes,
    t.job_code, t.rate::text, t.shift, t.status,
    t.employee_approval, t.manager_approval, t.approved_by, t.approval_date,
    t.timesheet_notes, t.version, t.created_at, t.updated_at`

// Store is the postgres StoreAPI backed by the time_entries table.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	breaksJSON, err := encodeBreaks(entry.Breaks)
	if err != nil {
		return TimeEntry{}, err
	}
	row := s.DB.QueryRow(ctx, `
    INSERT INTO time_entries AS t (id, employee_id, work_date, clock_in, clock_out, breaks,
      total_work_minutes, total_break_minutes, week_total_minutes,
      job_code, rate, shift, status, employee_approval, manager_approval,
      approved_by, approval_date, timesheet_notes, version, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::numeric,$12,$13,$14,$15,$16,$17,$18,1,$19,$20)
    RETURNING `+entryColumns,
		entry.ID, entry.EmployeeID, dateOnly(entry.Date), entry.ClockIn, entry.ClockOut, breaksJSON,
		entry.TotalWorkTime, entry.TotalBreakTime, entry.WeekTotal,
		entry.JobCode, entry.Rate.String(), entry.Shift, string(entry.Status), entry.EmployeeApproval, entry.ManagerApproval,
		entry.ApprovedBy, entry.ApprovalDate, entry.TimesheetNotes, entry.CreatedAt, entry.UpdatedAt)
	created, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return TimeEntry{}, ErrDuplicateClockIn
		}
		return TimeEntry{}, err
	}
	return created, nil
}

func (s *Store) GetEntry(ctx context.Context, employeeID string, date time.Time) (TimeEntry, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+entryColumns+`
    FROM time_entries t
    WHERE t.employee_id = $1 AND t.work_date = $2
  `, employeeID, dateOnly(date))
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return TimeEntry{}, ErrEntryNotFound
	}
	return entry, err
}

func (s *Store) OpenEntry(ctx context.Context, employeeID string) (TimeEntry, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+entryColumns+`
    FROM time_entries t
    WHERE t.employee_id = $1 AND t.status = $2
    ORDER BY t.work_date DESC
    LIMIT 1
  `, employeeID, string(StatusOpen))
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return TimeEntry{}, ErrEntryNotFound
	}
	return entry, err
}

func (s *Store) UpdateEntry(ctx context.Context, entry TimeEntry, expectedVersion int) (TimeEntry, error) {
	breaksJSON, err := encodeBreaks(entry.Breaks)
	if err != nil {
		return TimeEntry{}, err
	}
	row := s.DB.QueryRow(ctx, `
    UPDATE time_entries AS t
    SET clock_in = $3, clock_out = $4, breaks = $5,
        total_work_minutes = $6, total_break_minutes = $7, week_total_minutes = $8,
        job_code = $9, rate = $10::numeric, shift = $11, status = $12,
        employee_approval = $13, manager_approval = $14, approved_by = $15,
        approval_date = $16, timesheet_notes = $17,
        version = t.version + 1, updated_at = $18
    WHERE t.employee_id = $1 AND t.work_date = $2 AND t.version = $19
    RETURNING `+entryColumns,
		entry.EmployeeID, dateOnly(entry.Date), entry.ClockIn, entry.ClockOut, breaksJSON,
		entry.TotalWorkTime, entry.TotalBreakTime, entry.WeekTotal,
		entry.JobCode, entry.Rate.String(), entry.Shift, string(entry.Status),
		entry.EmployeeApproval, entry.ManagerApproval, entry.ApprovedBy,
		entry.ApprovalDate, entry.TimesheetNotes, entry.UpdatedAt, expectedVersion)
	updated, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetEntry(ctx, entry.EmployeeID, entry.Date); getErr != nil {
			return TimeEntry{}, getErr
		}
		return TimeEntry{}, ErrConcurrentModification
	}
	return updated, err
}

func (s *Store) ListEntries(ctx context.Context, filter Filter) ([]TimeEntry, error) {
	query, args := buildListQuery(filter)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func buildListQuery(filter Filter) (string, []any) {
	query := "SELECT " + entryColumns + " FROM time_entries t"
	var args []any
	where := " WHERE 1=1"

	if filter.Department != "" {
		query += `
    JOIN employees e ON e.id = t.employee_id
    LEFT JOIN departments d ON d.id = e.department_id`
		args = append(args, filter.Department)
		where += " AND d.name = $" + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, dateOnly(filter.From))
		where += " AND t.work_date >= $" + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, dateOnly(filter.To))
		where += " AND t.work_date <= $" + strconv.Itoa(len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += " AND t.employee_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += " AND t.status = $" + strconv.Itoa(len(args))
	}
	return query + where + " ORDER BY t.work_date, t.employee_id", args
}

func scanEntry(row pgx.Row) (TimeEntry, error) {
	var (
		entry      TimeEntry
		breaksJSON []byte
		rate       string
		status     string
	)
	if err := row.Scan(
		&entry.ID, &entry.EmployeeID, &entry.Date, &entry.ClockIn, &entry.ClockOut, &breaksJSON,
		&entry.TotalWorkTime, &entry.TotalBreakTime, &entry.WeekTotal,
		&entry.JobCode, &rate, &entry.Shift, &status,
		&entry.EmployeeApproval, &entry.ManagerApproval, &entry.ApprovedBy, &entry.ApprovalDate,
		&entry.TimesheetNotes, &entry.Version, &entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return TimeEntry{}, err
	}
	breaks, err := decodeBreaks(breaksJSON)
	if err != nil {
		return TimeEntry{}, err
	}
	entry.Breaks = breaks
	if entry.Rate, err = decimal.NewFromString(rate); err != nil {
		return TimeEntry{}, fmt.Errorf("time entry %s rate: %w", entry.ID, err)
	}
	if entry.Status, err = ParseStatus(status); err != nil {
		return TimeEntry{}, fmt.Errorf("time entry %s status %q: %w", entry.ID, status, err)
	}
	entry.Date = dateOnly(entry.Date)
	return entry, nil
}

func encodeBreaks(breaks []Break) ([]byte, error) {
	if breaks == nil {
		breaks = []Break{}
	}
	return json.Marshal(breaks)
}

func decodeBreaks(raw []byte) ([]Break, error) {
	breaks := []Break{}
	if len(raw) == 0 {
		return breaks, nil
	}
	if err := json.Unmarshal(raw, &breaks); err != nil {
		return nil, fmt.Errorf("decode breaks: %w", err)
	}
	return breaks, nil
}
