package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"timesheets/internal/domain/timesheet"
)

func fixtureRows(t *testing.T) []Row {
	t.Helper()
	rows, err := fixtureAggregator().Rows(context.Background(), timesheet.Filter{})
	require.NoError(t, err)
	return rows
}

func TestCSVQuotesEveryValueAndSanitizesNotes(t *testing.T) {
	data, err := CSVRenderer{}.Render(context.Background(), fixtureRows(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], `"Employee Name","Employee ID"`))
	assert.Contains(t, lines[1], `"left early; ""doctor"" back tomorrow"`)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`), line)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Len(t, records[1], len(csvHeader))
}

func TestCSVPlaceholders(t *testing.T) {
	rows := fixtureRows(t)
	data, err := CSVRenderer{}.Render(context.Background(), rows)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	open := records[4]
	assert.Equal(t, "e-gone", open[1])
	assert.Equal(t, NotAvailable, open[6])
	assert.Equal(t, NotAvailable, open[7])
	assert.Equal(t, NotAvailable, open[17])
	assert.Equal(t, NotAvailable, open[19])
}

func TestSanitizeNotes(t *testing.T) {
	assert.Equal(t, "a; b c d", SanitizeNotes("a, b\r\nc\nd"))
}

func TestSpreadsheetSheetsAndTypedCells(t *testing.T) {
	rows := fixtureRows(t)
	data, err := SpreadsheetRenderer{}.Render(context.Background(), rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, len(rows)+1)
	assert.Equal(t, SummarySheet, sheets[0])

	detail := detailSheetName(1, rows[1])
	cells, err := f.GetRows(detail)
	require.NoError(t, err)
	var labels []string
	for _, r := range cells {
		if len(r) > 0 {
			labels = append(labels, r[0])
		}
	}
	for _, section := range []string{"Employee Information", "Timesheet Details", "Break Details", "Notes", "Approval Information"} {
		assert.Contains(t, labels, section)
	}

	workCell, err := excelize.CoordinatesToCellName(9, 3)
	require.NoError(t, err)
	cellType, err := f.GetCellType(SummarySheet, workCell)
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)
}

func TestDocumentOmitsEmptySections(t *testing.T) {
	open := fixtureRows(t)[3]
	require.Empty(t, open.Breaks)
	require.Empty(t, open.Notes)

	data, err := DocumentRenderer{}.Render(context.Background(), []Row{open})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Contains(t, string(data), "Employee Information")
	assert.Contains(t, string(data), "Approval Information")
	assert.NotContains(t, string(data), "Break Details")
	assert.NotContains(t, string(data), "(Notes)")

	open.Notes = " \n\t "
	data, err = DocumentRenderer{}.Render(context.Background(), []Row{open})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "(Notes)")
}

func TestDocumentEmptyExport(t *testing.T) {
	data, err := DocumentRenderer{}.Render(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "No timesheets match")
}

// Every format carries the same name, date, work minutes and status.
func TestRoundTripCoreFieldsAcrossFormats(t *testing.T) {
	rows := fixtureRows(t)
	ctx := context.Background()

	csvData, err := CSVRenderer{}.Render(ctx, rows)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(csvData)).ReadAll()
	require.NoError(t, err)

	xlsxData, err := SpreadsheetRenderer{}.Render(ctx, rows)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsxData))
	require.NoError(t, err)
	defer f.Close()
	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)

	pdfData, err := DocumentRenderer{}.Render(ctx, rows)
	require.NoError(t, err)
	pdfText := string(pdfData)

	for i, row := range rows {
		name, date := row.EmployeeName, formatDate(row.Date)
		minutes, status := records[i+1][9], string(row.Status)

		assert.Equal(t, []string{name, date, status}, []string{records[i+1][0], records[i+1][4], records[i+1][14]})
		assert.Equal(t, []string{name, date, minutes, status}, []string{summary[i+1][0], summary[i+1][4], summary[i+1][8], summary[i+1][13]})

		for _, want := range []string{name, date, minutes, status} {
			assert.Contains(t, pdfText, "("+want+")")
		}
	}
}

func TestParseFormatAndNewRenderer(t *testing.T) {
	for _, format := range Formats {
		renderer, err := NewRenderer(format)
		require.NoError(t, err)
		assert.Equal(t, format, renderer.Format())
	}
	format, err := ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatDocument, format)

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, err, ErrExport)
}
