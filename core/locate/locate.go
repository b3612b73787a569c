// Package locate resolves logical sheet and column names against the loose
// headers of real spreadsheets. Headers rarely match their logical names
// exactly, so resolution is fuzzy: case-insensitive exact match first, then
// containment. A failed resolution is a normal outcome the caller skips
// around, not an error.
package locate

import (
	"strings"
	"time"
)

// Sheet resolves a sheet name against the workbook's sheet list. Exact
// case-insensitive match wins; otherwise the first sheet containing the
// target (or contained in it) is taken. Returns the index into names.
func Sheet(names []string, target string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return 0, false
	}
	for i, n := range names {
		if strings.ToLower(strings.TrimSpace(n)) == t {
			return i, true
		}
	}
	for i, n := range names {
		c := strings.ToLower(strings.TrimSpace(n))
		if strings.Contains(c, t) || strings.Contains(t, c) {
			return i, true
		}
	}
	return 0, false
}

// Column resolves a column by header name within the first maxRows rows.
// A full exact (case-insensitive) pass runs before the containment pass, so
// an exact header later in the sheet beats an earlier substring match.
// Returns 0-based column and header row indexes into rows.
func Column(rows [][]string, target string, maxRows int) (col, headerRow int, ok bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return 0, 0, false
	}
	limit := maxRows
	if limit > len(rows) {
		limit = len(rows)
	}
	for r := 0; r < limit; r++ {
		for c, cell := range rows[r] {
			if strings.ToLower(strings.TrimSpace(cell)) == t {
				return c, r, true
			}
		}
	}
	for r := 0; r < limit; r++ {
		for c, cell := range rows[r] {
			v := strings.ToLower(strings.TrimSpace(cell))
			if v == "" {
				continue
			}
			if strings.Contains(v, t) || strings.Contains(t, v) {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// Header describes one column a caller needs from a header row. A cell
// matches when it contains every key and none of the excludes.
type Header struct {
	Name    string
	Keys    []string
	Exclude []string
}

func (h Header) matches(cell string) bool {
	v := strings.ToLower(strings.TrimSpace(cell))
	if v == "" {
		return false
	}
	for _, k := range h.Keys {
		if !strings.Contains(v, k) {
			return false
		}
	}
	for _, x := range h.Exclude {
		if strings.Contains(v, x) {
			return false
		}
	}
	return true
}

// HeaderRow finds the header row holding the wanted columns within the first
// maxRows rows. A row where at least two of the wanted headers co-occur is
// preferred over any row matching only one; when no such row exists, a second
// lenient pass assigns the first match per header wherever it appears.
// Returns 0-based column indexes keyed by Header.Name and the 0-based header
// row. ok reports whether anything matched; callers check the names they
// require.
func HeaderRow(rows [][]string, wanted []Header, maxRows int) (map[string]int, int, bool) {
	limit := maxRows
	if limit > len(rows) {
		limit = len(rows)
	}

	for r := 0; r < limit; r++ {
		found := map[string]int{}
		for c, cell := range rows[r] {
			for _, h := range wanted {
				if _, done := found[h.Name]; done {
					continue
				}
				if h.matches(cell) {
					found[h.Name] = c
				}
			}
		}
		if len(found) >= 2 {
			return found, r, true
		}
	}

	// Lenient pass: collect the first match per header across all rows.
	found := map[string]int{}
	headerRow := -1
	for r := 0; r < limit; r++ {
		for c, cell := range rows[r] {
			for _, h := range wanted {
				if _, done := found[h.Name]; done {
					continue
				}
				if h.matches(cell) {
					found[h.Name] = c
					if headerRow < 0 {
						headerRow = r
					}
				}
			}
		}
	}
	if len(found) == 0 {
		return nil, 0, false
	}
	return found, headerRow, true
}

var dateLayouts = []string{
	"02-Jan-2006",
	"02-Jan-06",
	"2-Jan-2006",
	"02.01.2006",
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
}

// ParseDate parses the date formats seen across instruction and telemetry
// sources.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SheetNameForDate converts a date label such as "02-Jan-2026" into the
// reference workbook's sheet-naming convention "02.01.2026".
func SheetNameForDate(date string) (string, bool) {
	t, ok := ParseDate(date)
	if !ok {
		return "", false
	}
	return t.Format("02.01.2006"), true
}

// DateLabel normalizes a parseable date string to the report's display
// format "02-Jan-2006"; anything else passes through trimmed.
func DateLabel(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format("02-Jan-2006")
	}
	return strings.TrimSpace(s)
}
