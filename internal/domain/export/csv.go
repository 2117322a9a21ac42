package export

import (
	"context"
	"fmt"
	"strings"
)

var csvHeader = []string{
	"Employee Name", "Employee ID", "Department", "Position", "Date",
	"Clock In", "Clock Out", "Breaks", "Total Break Minutes", "Total Work Minutes",
	"Week Total Minutes", "Job Code", "Rate", "Shift", "Status",
	"Employee Approval", "Manager Approval", "Approved By", "Approval Date", "Notes",
}

// CSVRenderer quotes every value. Notes lose commas and line breaks so that
// spreadsheet tools importing the file never split a row.
type CSVRenderer struct{}

func (CSVRenderer) Format() Format      { return FormatCSV }
func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVRenderer) Extension() string   { return "csv" }

func (CSVRenderer) Render(ctx context.Context, rows []Row) ([]byte, error) {
	var b strings.Builder
	writeCSVLine(&b, csvHeader)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		writeCSVLine(&b, csvRecord(row))
	}
	return []byte(b.String()), nil
}

func csvRecord(row Row) []string {
	return []string{
		row.EmployeeName,
		row.EmployeeID,
		row.Department,
		row.Position,
		formatDate(row.Date),
		formatClock(row.ClockIn),
		formatClock(row.ClockOut),
		csvBreaks(row),
		fmt.Sprint(row.TotalBreakMinutes),
		fmt.Sprint(row.TotalWorkMinutes),
		fmt.Sprint(row.WeekTotalMinutes),
		orNA(row.JobCode),
		row.Rate.StringFixed(2),
		orNA(row.Shift),
		string(row.Status),
		yesNo(row.EmployeeApproval),
		yesNo(row.ManagerApproval),
		orNA(row.ApprovedBy),
		formatTimestamp(row.ApprovalDate),
		orNA(SanitizeNotes(row.Notes)),
	}
}

func csvBreaks(row Row) string {
	if len(row.Breaks) == 0 {
		return NotAvailable
	}
	parts := make([]string, 0, len(row.Breaks))
	for _, b := range row.Breaks {
		parts = append(parts, fmt.Sprintf("%s-%s (%s min)", b.StartTime.Format("15:04"), formatClock(b.EndTime), breakMinutes(b)))
	}
	return strings.Join(parts, "; ")
}

var notesReplacer = strings.NewReplacer(",", ";", "\r\n", " ", "\r", " ", "\n", " ")

// SanitizeNotes replaces commas with semicolons and line breaks with spaces.
func SanitizeNotes(notes string) string {
	return notesReplacer.Replace(notes)
}

func writeCSVLine(b *strings.Builder, values []string) {
	for i, value := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(value, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
}
