package xlsx

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instructionsFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instructions.xlsx")
	writeFixture(t, path, sheetData{
		name: "Instructions",
		rows: [][]any{
			{"Back Down Instructions"},
			{"Sr", "Name of the station", "From Date", "From Time", "To Time", "To Load (MW)"},
			{1, "GMR KAMALANGA", "02-Jan-2026", "09:07", "11:00", 400},
			{2, "VEDANTA LTD", "02-Jan-2026", "10:00", "12:00", nil},
			{3, "GMR KAMALANGA", "03-Jan-2026", "08:00", "09:30", 380},
		},
	})
	return path
}

func TestReadInstructionsFiltersStation(t *testing.T) {
	path := instructionsFixture(t)

	ins, err := ReadInstructions(path, "", "Name of the station", "GMR", 10)
	require.NoError(t, err)
	require.Len(t, ins, 2)

	assert.Equal(t, "GMR KAMALANGA", ins[0].Station)
	assert.Equal(t, "02-Jan-2026", ins[0].Date)
	assert.Equal(t, "09:07", ins[0].From)
	assert.Equal(t, "11:00", ins[0].To)
	require.NotNil(t, ins[0].LoadFloor)
	assert.Equal(t, 400.0, *ins[0].LoadFloor)
	assert.Equal(t, 3, ins[0].SourceRow)

	assert.Equal(t, "03-Jan-2026", ins[1].Date)
	require.NotNil(t, ins[1].LoadFloor)
	assert.Equal(t, 380.0, *ins[1].LoadFloor)
}

func TestReadInstructionsMissingLoadFloorIsNil(t *testing.T) {
	path := instructionsFixture(t)

	ins, err := ReadInstructions(path, "", "Name of the station", "VEDANTA LTD", 10)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Nil(t, ins[0].LoadFloor)
}

func TestReadInstructionsColumnNotFound(t *testing.T) {
	path := instructionsFixture(t)

	_, err := ReadInstructions(path, "", "Generator Name", "GMR", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestReadInstructionsNoMatchingRows(t *testing.T) {
	path := instructionsFixture(t)

	_, err := ReadInstructions(path, "", "Name of the station", "UNKNOWN PLANT", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatchingRows))
}

func TestReadInstructionsSheetNotFound(t *testing.T) {
	path := instructionsFixture(t)

	_, err := ReadInstructions(path, "Nope", "Name of the station", "GMR", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestListStations(t *testing.T) {
	path := instructionsFixture(t)

	stations, title, err := ListStations(path, "", "Name of the station", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"GMR KAMALANGA", "VEDANTA LTD"}, stations)
	assert.Equal(t, "Back Down Report from 02-Jan-2026 to 03-Jan-2026", title)
}
