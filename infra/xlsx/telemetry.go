package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sldctools/backdown/core/locate"
	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/core/timeslot"
)

// filenameDate matches date-like substrings in telemetry filenames,
// e.g. "BD LR 01-01-2026.xlsx" or "bd_lr_1.1.2026.xlsx".
var filenameDate = regexp.MustCompile(`(\d{1,2})[-._](\d{1,2})[-._](\d{4})`)

// TelemetryCache indexes a directory of per-day telemetry workbooks and
// amortizes lookups: each file is opened, header-resolved and time-indexed
// at most once per run. The cache is owned by the run and must be released
// with CloseAll on every exit path.
type TelemetryCache struct {
	dir           string
	sheet         string
	valueColumn   string
	maxHeaderRows int
	log           logger.Logger

	byDate map[string]string // normalized dd-mm-yyyy -> filename
	names  []string          // all candidate filenames, for fuzzy matching
	files  map[string]*telemetryFile
	opens  int
}

type telemetryFile struct {
	wb       *Workbook
	valueCol int
	times    map[string]int // normalized HH:MM -> 0-based row
	sheet    string
	ok       bool
}

// NewTelemetryCache enumerates dir once, mapping date-like filename
// substrings to candidate files. No file is opened yet.
func NewTelemetryCache(dir, sheet, valueColumn string, maxHeaderRows int, log logger.Logger) (*TelemetryCache, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read telemetry dir: %w", err)
	}
	if log == nil {
		log = logger.Nop{}
	}
	c := &TelemetryCache{
		dir:           dir,
		sheet:         sheet,
		valueColumn:   valueColumn,
		maxHeaderRows: maxHeaderRows,
		log:           log,
		byDate:        map[string]string{},
		files:         map[string]*telemetryFile{},
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".xlsx") {
			continue
		}
		c.names = append(c.names, e.Name())
		if m := filenameDate.FindStringSubmatch(e.Name()); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			key := fmt.Sprintf("%02d-%02d-%s", day, month, m[3])
			if _, dup := c.byDate[key]; !dup {
				c.byDate[key] = e.Name()
			}
		}
	}
	log.Debugf("telemetry cache: %d files, %d dated", len(c.names), len(c.byDate))
	return c, nil
}

// Value returns the observed figure for the date and time instant. A missing
// file, a failed header resolution or an absent time row are all no value.
func (c *TelemetryCache) Value(date, at string) (float64, bool) {
	name, ok := c.fileNameFor(date)
	if !ok {
		return 0, false
	}
	tf := c.open(name)
	if !tf.ok {
		return 0, false
	}
	r, ok := tf.times[timeslot.Normalize(at)]
	if !ok {
		return 0, false
	}
	rows, err := tf.wb.Rows(tf.sheet)
	if err != nil {
		return 0, false
	}
	return parseFloat(cell(rows, r, tf.valueCol))
}

// fileNameFor resolves a date label to a filename: exact match on the
// normalized dd-mm-yyyy key first, then substring search over all names.
func (c *TelemetryCache) fileNameFor(date string) (string, bool) {
	t, ok := locate.ParseDate(date)
	if !ok {
		return "", false
	}
	key := t.Format("02-01-2006")
	if name, ok := c.byDate[key]; ok {
		return name, true
	}
	for _, cand := range []string{key, t.Format("2-1-2006"), t.Format("02.01.2006")} {
		for _, name := range c.names {
			if strings.Contains(name, cand) {
				return name, true
			}
		}
	}
	return "", false
}

// open materializes the per-file index on first use. Failures are cached so
// a broken file is opened only once.
func (c *TelemetryCache) open(name string) *telemetryFile {
	if tf, ok := c.files[name]; ok {
		return tf
	}
	tf := &telemetryFile{}
	c.files[name] = tf

	wb, err := OpenWorkbook(filepath.Join(c.dir, name))
	if err != nil {
		c.log.Warnf("telemetry file %s: %v", name, err)
		return tf
	}
	c.opens++
	tf.wb = wb

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return tf
	}
	tf.sheet = sheets[0]
	if c.sheet != "" {
		if i, ok := locate.Sheet(sheets, c.sheet); ok {
			tf.sheet = sheets[i]
		}
	}

	rows, err := wb.Rows(tf.sheet)
	if err != nil {
		return tf
	}
	timeCol, headerRow, ok := locate.Column(rows, "time", c.maxHeaderRows)
	if !ok {
		c.log.Debugf("telemetry file %s: time column not found", name)
		return tf
	}
	valueCol, valueHeaderRow, ok := locate.Column(rows, c.valueColumn, c.maxHeaderRows)
	if !ok {
		c.log.Debugf("telemetry file %s: column %q not found", name, c.valueColumn)
		return tf
	}
	if valueHeaderRow > headerRow {
		headerRow = valueHeaderRow
	}

	tf.valueCol = valueCol
	tf.times = make(map[string]int, len(rows))
	for r := headerRow + 1; r < len(rows); r++ {
		key := normalizeInstant(cell(rows, r, timeCol))
		if key == "" {
			continue
		}
		if _, dup := tf.times[key]; !dup {
			tf.times[key] = r
		}
	}
	tf.ok = true
	return tf
}

// normalizeInstant reduces a time cell, possibly a full "date HH:MM:SS"
// stamp, to the canonical "HH:MM" key.
func normalizeInstant(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	if _, ok := timeslot.ParseMinutes(s); !ok {
		return ""
	}
	return timeslot.Normalize(s)
}

// CloseAll releases every cached file handle. The cache is unusable after.
func (c *TelemetryCache) CloseAll() {
	for name, tf := range c.files {
		if tf.wb != nil {
			if err := tf.wb.Close(); err != nil {
				c.log.Warnf("close %s: %v", name, err)
			}
		}
	}
	c.files = map[string]*telemetryFile{}
}
