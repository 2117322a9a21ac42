package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet   = "Timesheets"
	maxSheetName   = 31
	defaultSheet   = "Sheet1"
	labelColumnMax = 24
)

var summaryHeader = []any{
	"Employee Name", "Employee ID", "Department", "Position", "Date",
	"Clock In", "Clock Out", "Total Break Minutes", "Total Work Minutes", "Week Total Minutes",
	"Job Code", "Rate", "Shift", "Status", "Approved By", "Approval Date", "Notes",
}

// SpreadsheetRenderer writes a summary sheet plus one sheet per timesheet.
// Minutes and rate are stored as numbers.
type SpreadsheetRenderer struct{}

func (SpreadsheetRenderer) Format() Format { return FormatSpreadsheet }
func (SpreadsheetRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (SpreadsheetRenderer) Extension() string { return "xlsx" }

func (SpreadsheetRenderer) Render(ctx context.Context, rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("close spreadsheet failed", "err", err)
		}
	}()

	index, err := f.NewSheet(SummarySheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet(defaultSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := summaryValues(row)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return nil, err
		}
		if err := writeDetailSheet(f, detailSheetName(i, row), row, bold); err != nil {
			slog.Warn("timesheet sheet failed", "entryId", row.EntryID, "err", err)
			continue
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func summaryValues(row Row) []any {
	return []any{
		row.EmployeeName,
		row.EmployeeID,
		row.Department,
		row.Position,
		formatDate(row.Date),
		formatClock(row.ClockIn),
		formatClock(row.ClockOut),
		row.TotalBreakMinutes,
		row.TotalWorkMinutes,
		row.WeekTotalMinutes,
		orNA(row.JobCode),
		row.Rate.InexactFloat64(),
		orNA(row.Shift),
		string(row.Status),
		orNA(row.ApprovedBy),
		formatTimestamp(row.ApprovalDate),
		orNA(row.Notes),
	}
}

// sheetWriter appends label/value lines to one sheet.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	bold  int
	line  int
	err   error
}

func (w *sheetWriter) set(col int, value any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, w.line)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(w.sheet, cell, value)
}

func (w *sheetWriter) heading(title string) {
	if w.line > 0 {
		w.line++
	}
	w.line++
	w.set(1, title)
	if w.err == nil {
		cell, _ := excelize.CoordinatesToCellName(1, w.line)
		w.err = w.f.SetCellStyle(w.sheet, cell, cell, w.bold)
	}
}

func (w *sheetWriter) pair(label string, value any) {
	w.line++
	w.set(1, label)
	w.set(2, value)
}

func writeDetailSheet(f *excelize.File, name string, row Row, bold int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	w := &sheetWriter{f: f, sheet: name, bold: bold}

	w.heading("Employee Information")
	for _, fl := range employeeFields(row) {
		w.pair(fl.label, fl.value)
	}

	w.heading("Timesheet Details")
	w.pair("Date", formatDate(row.Date))
	w.pair("Clock In", formatClock(row.ClockIn))
	w.pair("Clock Out", formatClock(row.ClockOut))
	w.pair("Total Work Minutes", row.TotalWorkMinutes)
	w.pair("Total Break Minutes", row.TotalBreakMinutes)
	w.pair("Week Total Minutes", row.WeekTotalMinutes)
	w.pair("Job Code", orNA(row.JobCode))
	w.pair("Rate", row.Rate.InexactFloat64())
	w.pair("Shift", orNA(row.Shift))
	w.pair("Status", string(row.Status))

	w.heading("Break Details")
	if len(row.Breaks) == 0 {
		w.pair("Breaks", NotAvailable)
	} else {
		w.line++
		w.set(1, "Start")
		w.set(2, "End")
		w.set(3, "Minutes")
		for _, b := range row.Breaks {
			w.line++
			w.set(1, b.StartTime.Format("15:04"))
			w.set(2, formatClock(b.EndTime))
			if b.Duration != nil {
				w.set(3, *b.Duration)
			} else {
				w.set(3, breakMinutes(b))
			}
		}
	}

	w.heading("Notes")
	w.pair("Notes", orNA(row.Notes))

	w.heading("Approval Information")
	for _, fl := range approvalFields(row) {
		w.pair(fl.label, fl.value)
	}

	if w.err != nil {
		return w.err
	}
	return f.SetColWidth(name, "A", "C", labelColumnMax)
}

var sheetNameReplacer = strings.NewReplacer(":", "", `\`, "", "/", "", "?", "", "*", "", "[", "", "]", "", "'", "")

// detailSheetName is unique per row thanks to the index prefix.
func detailSheetName(i int, row Row) string {
	name := sheetNameReplacer.Replace(fmt.Sprintf("%d %s %s", i+1, formatDate(row.Date), row.EmployeeID))
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return strings.TrimSpace(name)
}
