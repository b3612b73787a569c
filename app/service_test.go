package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sldctools/backdown/config"
	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/infra/jobs"
	"github.com/sldctools/backdown/infra/xlsx"
)

func writeSheet(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	insPath := filepath.Join(dir, "instructions.xlsx")
	writeSheet(t, insPath, "Instructions", [][]any{
		{"Name of the station", "From Date", "From Time", "To Time", "To Load (MW)"},
		{"HNPCL", "02-Jan-2026", "09:00", "09:30", nil},
	})

	refPath := filepath.Join(dir, "dc.xlsx")
	writeSheet(t, refPath, "02.01.2026", [][]any{
		{"Time Block", "From", "To", "Final Revised DC"},
		{1, "09:00", "09:15", 400},
		{2, "09:15", "09:30", 400},
	})

	telDir := filepath.Join(dir, "scada")
	require.NoError(t, os.MkdirAll(telDir, 0o755))
	writeSheet(t, filepath.Join(telDir, "scada 02-01-2026.xlsx"), "SCADA", [][]any{
		{"Time", "HNPCL"},
		{"09:00", 390},
		{"09:15", 385},
	})

	cfg := &config.Config{}
	cfg.Instructions.Path = insPath
	cfg.Instructions.Station = "HNPCL"
	cfg.Reference.Path = refPath
	cfg.Telemetry.Dir = telDir
	cfg.Telemetry.ValueColumn = "HNPCL"
	cfg.Report.OutputDir = filepath.Join(dir, "out")
	cfg.Report.ProgressBatch = 1
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestGenerateEndToEnd(t *testing.T) {
	svc, err := New(testConfig(t), logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	job, err := svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, job.Status)
	assert.NotEmpty(t, job.OutputFilename)
	assert.Equal(t, 2, job.TotalSlots)
	assert.InDelta(t, 100.0, job.ProgressPct, 1e-9)

	entries, err := svc.Reports().List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, job.OutputFilename, entries[0].Filename)
	assert.Equal(t, "HNPCL", entries[0].Station)
	assert.Equal(t, "02-Jan-2026", entries[0].DateFrom)
	assert.Equal(t, 1, entries[0].TotalInstructions)
	assert.Equal(t, 3, entries[0].RowCount, "two slots plus the summary row")

	// The artifact carries the computed figures.
	path := filepath.Join(svc.Reports().Dir(), job.OutputFilename)
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rampCell, err := f.GetCellValue("Time Intervals", "I2")
	require.NoError(t, err)
	assert.Equal(t, "360", rampCell, "first slot ramps down from the reference 400")
	telCell, err := f.GetCellValue("Time Intervals", "E2")
	require.NoError(t, err)
	assert.Equal(t, "390", telCell)
}

func TestGenerateStructuralFailureMarksJob(t *testing.T) {
	cfg := testConfig(t)
	cfg.Instructions.Station = "NO SUCH PLANT"

	svc, err := New(cfg, logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	job, err := svc.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, xlsx.ErrNoMatchingRows))
	assert.Equal(t, jobs.StatusError, job.Status)
	assert.Contains(t, job.ErrorMessage, "no matching rows")

	got, err := svc.Jobs().Read()
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusError, got.Status)
}

func TestStations(t *testing.T) {
	svc, err := New(testConfig(t), logger.Nop{})
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	stations, title, err := svc.Stations()
	require.NoError(t, err)
	assert.Equal(t, []string{"HNPCL"}, stations)
	assert.Equal(t, "Back Down Report from 02-Jan-2026", title)
}
