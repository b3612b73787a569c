// Package xlsx adapts the instruction, reference and telemetry spreadsheets
// behind the interfaces the calculator consumes, using excelize for all
// workbook access.
package xlsx

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook wraps an open excelize file and caches row snapshots per sheet so
// repeated lookups never re-read the underlying XML.
type Workbook struct {
	f    *excelize.File
	path string
	rows map[string][][]string
}

// OpenWorkbook opens the file at path for reading.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return &Workbook{f: f, path: path, rows: map[string][][]string{}}, nil
}

// Sheets lists the sheet names in workbook order.
func (w *Workbook) Sheets() []string { return w.f.GetSheetList() }

// Rows returns the sheet's cells as strings, cached after the first call.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	if rows, ok := w.rows[sheet]; ok {
		return rows, nil
	}
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	w.rows[sheet] = rows
	return rows, nil
}

// Path returns the file location the workbook was opened from.
func (w *Workbook) Path() string { return w.path }

// Close releases the underlying file handle.
func (w *Workbook) Close() error { return w.f.Close() }

// cell returns rows[r][c], tolerating ragged rows.
func cell(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) {
		return ""
	}
	row := rows[r]
	if c < 0 || c >= len(row) {
		return ""
	}
	return row[c]
}

// parseFloat coerces a cell to a number. Thousands separators are tolerated;
// anything unparseable is simply no value.
func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
