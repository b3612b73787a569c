package xlsx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sldctools/backdown/core/locate"
	"github.com/sldctools/backdown/core/model"
	"github.com/sldctools/backdown/core/timeslot"
)

// Structural failures of the instructions source. These abort a run before
// any slot is processed and are surfaced verbatim.
var (
	ErrColumnNotFound = errors.New("column not found")
	ErrNoMatchingRows = errors.New("no matching rows found")
	ErrSheetNotFound  = errors.New("sheet not found")
)

// ReadInstructions extracts the ordered instruction rows for one station
// from the instructions workbook. Sheet may be empty to use the first sheet;
// station matching is exact first, then case-insensitive, then substring.
func ReadInstructions(path, sheet, stationColumn, station string, maxHeaderRows int) ([]model.Instruction, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, fmt.Errorf("open instructions: %w", err)
	}
	defer func() { _ = wb.Close() }()

	rows, sheetName, err := instructionRows(wb, sheet)
	if err != nil {
		return nil, err
	}

	col, headerRow, ok := locate.Column(rows, stationColumn, maxHeaderRows)
	if !ok {
		return nil, fmt.Errorf("%w: %q in sheet %q", ErrColumnNotFound, stationColumn, sheetName)
	}

	cols := instructionColumns(rows[headerRow])

	var out []model.Instruction
	target := strings.TrimSpace(station)
	for r := headerRow + 1; r < len(rows); r++ {
		name := strings.TrimSpace(cell(rows, r, col))
		if name == "" || !stationMatches(name, target) {
			continue
		}
		ins := model.Instruction{
			Station:   name,
			From:      timeslot.Normalize(cell(rows, r, cols.fromTime)),
			To:        timeslot.Normalize(cell(rows, r, cols.toTime)),
			SourceRow: r + 1,
		}
		if cols.date >= 0 {
			ins.Date = locate.DateLabel(cell(rows, r, cols.date))
		}
		if cols.toLoad >= 0 {
			if v, ok := parseFloat(cell(rows, r, cols.toLoad)); ok {
				ins.LoadFloor = model.Float(v)
			}
		}
		out = append(out, ins)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: station %q", ErrNoMatchingRows, station)
	}
	return out, nil
}

// ListStations returns the distinct station names in the instructions sheet
// plus a report title derived from the date column's range.
func ListStations(path, sheet, stationColumn string, maxHeaderRows int) ([]string, string, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, "", fmt.Errorf("open instructions: %w", err)
	}
	defer func() { _ = wb.Close() }()

	rows, sheetName, err := instructionRows(wb, sheet)
	if err != nil {
		return nil, "", err
	}
	col, headerRow, ok := locate.Column(rows, stationColumn, maxHeaderRows)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q in sheet %q", ErrColumnNotFound, stationColumn, sheetName)
	}
	cols := instructionColumns(rows[headerRow])

	seen := map[string]struct{}{}
	var dates []string
	for r := headerRow + 1; r < len(rows); r++ {
		if name := strings.TrimSpace(cell(rows, r, col)); name != "" {
			seen[name] = struct{}{}
		}
		if cols.date >= 0 {
			if d := strings.TrimSpace(cell(rows, r, cols.date)); d != "" {
				dates = append(dates, locate.DateLabel(d))
			}
		}
	}
	stations := make([]string, 0, len(seen))
	for s := range seen {
		stations = append(stations, s)
	}
	sort.Strings(stations)
	return stations, reportTitle(dates), nil
}

func instructionRows(wb *Workbook, sheet string) ([][]string, string, error) {
	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("%w: workbook has no sheets", ErrSheetNotFound)
	}
	name := sheets[0]
	if sheet != "" {
		i, ok := locate.Sheet(sheets, sheet)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
		}
		name = sheets[i]
	}
	rows, err := wb.Rows(name)
	if err != nil {
		return nil, "", fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, name, nil
}

type insColumns struct {
	fromTime int
	toTime   int
	date     int
	toLoad   int
}

// instructionColumns picks the time, date and load-floor columns off the
// header row. "From Date" is preferred over a bare "Date" for the block date.
func instructionColumns(header []string) insColumns {
	cols := insColumns{fromTime: -1, toTime: -1, date: -1, toLoad: -1}
	fromDate := -1
	for c, h := range header {
		v := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(v, "from") && strings.Contains(v, "time"):
			cols.fromTime = c
		case strings.Contains(v, "to") && strings.Contains(v, "time"):
			cols.toTime = c
		case strings.Contains(v, "from") && strings.Contains(v, "date"):
			fromDate = c
		case strings.Contains(v, "date") && cols.date < 0:
			cols.date = c
		case strings.Contains(v, "to") && strings.Contains(v, "load"):
			cols.toLoad = c
		}
	}
	if fromDate >= 0 {
		cols.date = fromDate
	}
	return cols
}

func stationMatches(cellVal, target string) bool {
	if target == "" {
		return true
	}
	if cellVal == target {
		return true
	}
	if strings.EqualFold(cellVal, target) {
		return true
	}
	return strings.Contains(strings.ToUpper(cellVal), strings.ToUpper(target))
}

func reportTitle(dates []string) string {
	if len(dates) == 0 {
		return "Back Down Report"
	}
	sort.Slice(dates, func(i, j int) bool {
		ti, oki := locate.ParseDate(dates[i])
		tj, okj := locate.ParseDate(dates[j])
		if oki && okj {
			return ti.Before(tj)
		}
		return dates[i] < dates[j]
	})
	from, to := dates[0], dates[len(dates)-1]
	if from == to {
		return fmt.Sprintf("Back Down Report from %s", from)
	}
	return fmt.Sprintf("Back Down Report from %s to %s", from, to)
}
