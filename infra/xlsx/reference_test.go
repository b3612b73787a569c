package xlsx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sldctools/backdown/core/logger"
)

func referenceFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "declared_capacity.xlsx")
	writeFixture(t, path,
		sheetData{
			name: "02.01.2026",
			rows: [][]any{
				{"Declared Capacity for 02.01.2026"},
				{"Time Block No", "From", "To", "Initial DC", "Final Revised DC"},
				{1, "09:00", "09:15", 410, 400},
				{2, "09:15", "09:30", 410, 398.5},
				{3, "09:30", "09:45", 410, nil},
			},
		},
		sheetData{
			name: "03.01.2026",
			rows: [][]any{
				{"Time Block No", "From", "To", "Initial DC", "Final Revised DC"},
				{1, "9:00", "9:15", 420, 412},
			},
		},
	)
	return path
}

func TestReferenceValue(t *testing.T) {
	l, err := NewReferenceLookup(referenceFixture(t), 10, logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	v, ok := l.Value("02-Jan-2026", "09:00", "09:15")
	require.True(t, ok)
	assert.Equal(t, 400.0, v)

	v, ok = l.Value("02-Jan-2026", "09:15", "09:30")
	require.True(t, ok)
	assert.Equal(t, 398.5, v)
}

func TestReferenceNormalizesSlotTimes(t *testing.T) {
	// The sheet writes "9:00" but the lookup asks with canonical "09:00".
	l, err := NewReferenceLookup(referenceFixture(t), 10, logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	v, ok := l.Value("03-Jan-2026", "09:00", "09:15")
	require.True(t, ok)
	assert.Equal(t, 412.0, v)
}

func TestReferenceMissesAreNoValue(t *testing.T) {
	l, err := NewReferenceLookup(referenceFixture(t), 10, logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	_, ok := l.Value("02-Jan-2026", "23:00", "23:15")
	assert.False(t, ok, "slot absent from the sheet")

	_, ok = l.Value("02-Jan-2026", "09:30", "09:45")
	assert.False(t, ok, "slot present but value cell empty")

	_, ok = l.Value("09-Sep-2026", "09:00", "09:15")
	assert.False(t, ok, "no sheet for that date")

	_, ok = l.Value("not a date", "09:00", "09:15")
	assert.False(t, ok)
}
