package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"timesheets/internal/domain/timesheet"
)

type Request struct {
	Format     Format    `json:"format"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	Department string    `json:"department,omitempty"`
	Status     string    `json:"status,omitempty"`
	EmployeeID string    `json:"employeeId,omitempty"`
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", timesheet.ErrValidation, reason)
}

// Validate checks the request. maxDays <= 0 disables the range limit.
func (r Request) Validate(maxDays int) error {
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return invalid("startDate and endDate are required")
	}
	if r.EndDate.Before(r.StartDate) {
		return invalid("endDate must be on or after startDate")
	}
	if maxDays > 0 && int(r.EndDate.Sub(r.StartDate).Hours()/24)+1 > maxDays {
		return invalid(fmt.Sprintf("date range must not exceed %d days", maxDays))
	}
	if r.Status != "" {
		if _, err := timesheet.ParseStatus(r.Status); err != nil {
			return err
		}
	}
	if _, err := NewRenderer(r.Format); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, r.describe())
	}
	return nil
}

func (r Request) Filter() timesheet.Filter {
	status, _ := timesheet.ParseStatus(r.Status)
	return timesheet.Filter{
		From:       r.StartDate,
		To:         r.EndDate,
		EmployeeID: r.EmployeeID,
		Department: r.Department,
		Status:     status,
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName follows timesheets_<start>_to_<end>[_<department>].<ext>.
func (r Request) FileName() string {
	ext := string(r.Format)
	if renderer, err := NewRenderer(r.Format); err == nil {
		ext = renderer.Extension()
	}
	name := fmt.Sprintf("timesheets_%s_to_%s", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	if dept := strings.Trim(unsafeFileChars.ReplaceAllString(r.Department, "-"), "-"); dept != "" {
		name += "_" + dept
	}
	return name + "." + ext
}

func (r Request) describe() string {
	return fmt.Sprintf("%s export for %s to %s", r.Format, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
}

type File struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Rows        int    `json:"rows"`
	Data        []byte `json:"data"`
}

type Exporter struct {
	Aggregator *Aggregator
	MaxDays    int
}

func NewExporter(aggregator *Aggregator, maxDays int) *Exporter {
	return &Exporter{Aggregator: aggregator, MaxDays: maxDays}
}

// Export renders the matching timesheets. Failures other than validation and
// cancellation are reported as ErrExport naming only the format and range.
func (e *Exporter) Export(ctx context.Context, req Request) (File, error) {
	if err := req.Validate(e.MaxDays); err != nil {
		return File{}, err
	}
	renderer, err := NewRenderer(req.Format)
	if err != nil {
		return File{}, err
	}

	rows, err := e.Aggregator.Rows(ctx, req.Filter())
	if err != nil {
		return File{}, e.fail(ctx, req, err)
	}
	data, err := renderer.Render(ctx, rows)
	if err != nil {
		return File{}, e.fail(ctx, req, err)
	}
	return File{
		Name:        req.FileName(),
		ContentType: renderer.ContentType(),
		Rows:        len(rows),
		Data:        data,
	}, nil
}

// Summarize aggregates without rendering. Format is not required.
func (e *Exporter) Summarize(ctx context.Context, filter timesheet.Filter) (Summary, error) {
	rows, err := e.Aggregator.Rows(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(rows), nil
}

func (e *Exporter) fail(ctx context.Context, req Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	slog.Error("export failed", "format", req.Format, "start", req.StartDate.Format("2006-01-02"), "end", req.EndDate.Format("2006-01-02"), "err", err)
	return fmt.Errorf("%w: %s", ErrExport, req.describe())
}
