package jobs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBeforeAnyJob(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "job.json"))
	_, err := s.Read()
	assert.True(t, errors.Is(err, ErrNoJob))
}

func TestBeginAndRead(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state", "job.json"))

	j, err := s.Begin("HNPCL")
	require.NoError(t, err)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusPending, j.Status)
	assert.True(t, j.Active())

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, "HNPCL", got.Station)
}

func TestUpdateComputesProgress(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "job.json"))
	_, err := s.Begin("HNPCL")
	require.NoError(t, err)

	j, err := s.Update(func(j *Job) {
		j.Status = StatusRunning
		j.ProcessedSlots = 3
		j.TotalSlots = 12
		j.CurrentDate = "02-Jan-2026"
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, j.Status)
	assert.InDelta(t, 25.0, j.ProgressPct, 1e-9)

	j, err = s.Update(func(j *Job) {
		j.Status = StatusDone
		j.ProcessedSlots = 12
		j.OutputFilename = "hnpcl_20260102.xlsx"
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, j.Status)
	assert.False(t, j.Active())
	assert.InDelta(t, 100.0, j.ProgressPct, 1e-9)
}

func TestWriteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	s := NewStore(path)
	j, err := s.Begin("GMR")
	require.NoError(t, err)

	other := NewStore(path)
	got, err := other.Read()
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
}
