package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"timesheets/internal/domain/timesheet"
)

// NotAvailable is rendered for optional values that are absent.
const NotAvailable = "N/A"

var (
	ErrExport            = errors.New("export failed")
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrExport)
)

type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
	FormatDocument    Format = "document"
)

var Formats = []Format{FormatCSV, FormatSpreadsheet, FormatDocument}

// ParseFormat accepts the format names and their file extensions.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "spreadsheet", "xlsx":
		return FormatSpreadsheet, nil
	case "document", "pdf":
		return FormatDocument, nil
	}
	return "", ErrUnsupportedFormat
}

type Renderer interface {
	Format() Format
	ContentType() string
	Extension() string
	Render(ctx context.Context, rows []Row) ([]byte, error)
}

func NewRenderer(format Format) (Renderer, error) {
	switch format {
	case FormatCSV:
		return CSVRenderer{}, nil
	case FormatSpreadsheet:
		return SpreadsheetRenderer{}, nil
	case FormatDocument:
		return DocumentRenderer{Compress: true}, nil
	}
	return nil, ErrUnsupportedFormat
}

// field is one labelled value shared by every format.
type field struct {
	label string
	value string
}

func employeeFields(row Row) []field {
	return []field{
		{"Employee Name", row.EmployeeName},
		{"Employee ID", row.EmployeeID},
		{"Department", row.Department},
		{"Position", row.Position},
	}
}

func detailFields(row Row) []field {
	return []field{
		{"Date", formatDate(row.Date)},
		{"Clock In", formatClock(row.ClockIn)},
		{"Clock Out", formatClock(row.ClockOut)},
		{"Total Work Minutes", fmt.Sprint(row.TotalWorkMinutes)},
		{"Total Break Minutes", fmt.Sprint(row.TotalBreakMinutes)},
		{"Week Total Minutes", fmt.Sprint(row.WeekTotalMinutes)},
		{"Job Code", orNA(row.JobCode)},
		{"Rate", row.Rate.StringFixed(2)},
		{"Shift", orNA(row.Shift)},
		{"Status", string(row.Status)},
	}
}

func approvalFields(row Row) []field {
	return []field{
		{"Employee Approval", yesNo(row.EmployeeApproval)},
		{"Manager Approval", yesNo(row.ManagerApproval)},
		{"Approved By", orNA(row.ApprovedBy)},
		{"Approval Date", formatTimestamp(row.ApprovalDate)},
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format("2006-01-02")
}

func formatClock(t *time.Time) string {
	if t == nil {
		return NotAvailable
	}
	return t.Format("15:04")
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return NotAvailable
	}
	return t.Format("2006-01-02 15:04")
}

func breakMinutes(b timesheet.Break) string {
	if b.Duration != nil {
		return fmt.Sprint(*b.Duration)
	}
	if b.EndTime == nil {
		return NotAvailable
	}
	minutes, err := timesheet.DurationMinutes(b.StartTime, *b.EndTime)
	if err != nil {
		return NotAvailable
	}
	return fmt.Sprint(minutes)
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return NotAvailable
	}
	return value
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
