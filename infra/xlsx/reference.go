package xlsx

import (
	"fmt"

	"github.com/sldctools/backdown/core/locate"
	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/core/timeslot"
)

// Reference lookups scan at most this many data rows per sheet.
const refMaxDataRows = 200

// ReferenceLookup resolves planned-generation figures from a workbook with
// one date-named sheet per day. Column resolution is cached per sheet for
// the lifetime of the lookup.
type ReferenceLookup struct {
	wb            *Workbook
	log           logger.Logger
	maxHeaderRows int
	sheets        map[string]*refSheet
}

type refSheet struct {
	fromCol   int
	toCol     int
	valueCol  int
	headerRow int
	ok        bool
}

// NewReferenceLookup opens the reference workbook at path.
func NewReferenceLookup(path string, maxHeaderRows int, log logger.Logger) (*ReferenceLookup, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return nil, fmt.Errorf("open reference: %w", err)
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &ReferenceLookup{
		wb:            wb,
		log:           log,
		maxHeaderRows: maxHeaderRows,
		sheets:        map[string]*refSheet{},
	}, nil
}

// Value returns the planned figure for the date's sheet and the exact
// (from,to) slot. Any miss along the way is no value, not an error.
func (l *ReferenceLookup) Value(date, from, to string) (float64, bool) {
	target, ok := locate.SheetNameForDate(date)
	if !ok {
		return 0, false
	}
	idx, ok := locate.Sheet(l.wb.Sheets(), target)
	if !ok {
		l.log.Debugf("reference sheet %q not found", target)
		return 0, false
	}
	sheet := l.wb.Sheets()[idx]

	rs := l.resolve(sheet)
	if !rs.ok {
		return 0, false
	}
	rows, err := l.wb.Rows(sheet)
	if err != nil {
		return 0, false
	}

	fromNorm := timeslot.Normalize(from)
	toNorm := timeslot.Normalize(to)
	limit := rs.headerRow + 1 + refMaxDataRows
	if limit > len(rows) {
		limit = len(rows)
	}
	for r := rs.headerRow + 1; r < limit; r++ {
		if timeslot.Normalize(cell(rows, r, rs.fromCol)) != fromNorm {
			continue
		}
		if timeslot.Normalize(cell(rows, r, rs.toCol)) != toNorm {
			continue
		}
		return parseFloat(cell(rows, r, rs.valueCol))
	}
	return 0, false
}

// resolve finds the From/To/Final-value columns of a sheet once and caches
// the result, including failures.
func (l *ReferenceLookup) resolve(sheet string) *refSheet {
	if rs, ok := l.sheets[sheet]; ok {
		return rs
	}
	rs := &refSheet{}
	l.sheets[sheet] = rs

	rows, err := l.wb.Rows(sheet)
	if err != nil {
		return rs
	}
	wanted := []locate.Header{
		{Name: "from", Keys: []string{"from"}},
		{Name: "to", Keys: []string{"to"}, Exclude: []string{"tb", "no"}},
		{Name: "final", Keys: []string{"final", "revis"}},
	}
	cols, headerRow, ok := locate.HeaderRow(rows, wanted, l.maxHeaderRows)
	if !ok {
		l.log.Debugf("reference sheet %q: header row not found", sheet)
		return rs
	}
	fromCol, okFrom := cols["from"]
	toCol, okTo := cols["to"]
	valueCol, okFinal := cols["final"]
	if !okFrom || !okTo || !okFinal {
		l.log.Debugw("reference sheet missing columns", map[string]any{
			"sheet": sheet, "from": okFrom, "to": okTo, "final": okFinal,
		})
		return rs
	}
	rs.fromCol, rs.toCol, rs.valueCol, rs.headerRow, rs.ok = fromCol, toCol, valueCol, headerRow, true
	return rs
}

// Close releases the reference workbook.
func (l *ReferenceLookup) Close() error { return l.wb.Close() }
