package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// DocumentRenderer lays out one timesheet per A4 page. Break Details and
// Notes are left out when there is nothing to show.
type DocumentRenderer struct {
	// Compress deflates page streams. Off keeps the text greppable.
	Compress bool
}

func (DocumentRenderer) Format() Format      { return FormatDocument }
func (DocumentRenderer) ContentType() string { return "application/pdf" }
func (DocumentRenderer) Extension() string   { return "pdf" }

func (r DocumentRenderer) Render(ctx context.Context, rows []Row) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetTitle("Timesheets", true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	if len(rows) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 10, "No timesheets match the selected filters.")
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		renderPage(pdf, tr, row)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPage(pdf *gofpdf.Fpdf, tr func(string) string, row Row) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr("Timesheet "+formatDate(row.Date)))
	pdf.Ln(12)

	section(pdf, tr, "Employee Information", employeeFields(row))
	section(pdf, tr, "Timesheet Details", detailFields(row))

	if len(row.Breaks) > 0 {
		heading(pdf, tr, "Break Details")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 7, "Start", "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, "End", "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, "Minutes", "1", 1, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, b := range row.Breaks {
			pdf.CellFormat(40, 7, b.StartTime.Format("15:04"), "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 7, formatClock(b.EndTime), "1", 0, "", false, 0, "")
			pdf.CellFormat(40, 7, breakMinutes(b), "1", 1, "", false, 0, "")
		}
		pdf.Ln(4)
	}

	if strings.TrimSpace(row.Notes) != "" {
		heading(pdf, tr, "Notes")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, tr(row.Notes), "", "", false)
		pdf.Ln(4)
	}

	section(pdf, tr, "Approval Information", approvalFields(row))
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(9)
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string, fields []field) {
	heading(pdf, tr, title)
	for _, fl := range fields {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(55, 6, tr(fl.label), "", 0, "", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(fl.value), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)
}
