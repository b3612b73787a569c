package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
instructions:
  path: instructions.xlsx
reference:
  path: dc.xlsx
telemetry:
  dir: scada
  valueColumn: HNPCL
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "instructions.xlsx", cfg.Instructions.Path)
	assert.Equal(t, "Name of the station", cfg.Instructions.StationColumn)
	assert.Equal(t, 10, cfg.Instructions.MaxHeaderRows)
	assert.Equal(t, 40.0, cfg.Ramp.RampDown15)
	assert.Equal(t, 270.0, cfg.Ramp.MinimumLoadFloor)
	assert.Equal(t, "reports", cfg.Report.OutputDir)
	assert.Equal(t, 5, cfg.Report.ProgressBatch)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 9090, cfg.Metrics.PrometheusPort)
}

func TestLoadOverridesRampParameters(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
instructions:
  path: instructions.xlsx
ramp:
  ramp_down_15: 50
  minimum_load_floor: 300
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Ramp.RampDown15)
	assert.Equal(t, 300.0, cfg.Ramp.MinimumLoadFloor)
	assert.Equal(t, 40.0, cfg.Ramp.RampUp15, "untouched parameters keep their defaults")
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "instructions": {"path": "instructions.xlsx", "station": "HNPCL"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "HNPCL", cfg.Instructions.Station)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BD_INSTRUCTIONS__STATION", "GMR KAMALANGA")
	path := writeConfig(t, "config.yaml", `
instructions:
  path: instructions.xlsx
  station: HNPCL
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "GMR KAMALANGA", cfg.Instructions.Station)
}

func TestSetDefaultsFillsRampTunables(t *testing.T) {
	// Configs built in code, not via Load, must still get the standard ramp
	// rates and the minimum load floor.
	cfg := &Config{}
	cfg.Instructions.Path = "instructions.xlsx"
	cfg.SetDefaults()

	assert.Equal(t, 40.0, cfg.Ramp.RampDown15)
	assert.Equal(t, 27.5, cfg.Ramp.RampDown10)
	assert.Equal(t, 270.0, cfg.Ramp.MinimumLoadFloor)
	assert.Equal(t, 10, cfg.Ramp.MaxHeaderScanRows)

	cfg.Ramp.RampDown15 = 50
	cfg.SetDefaults()
	assert.Equal(t, 50.0, cfg.Ramp.RampDown15, "explicit values survive re-defaulting")
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresInstructionsPath(t *testing.T) {
	path := writeConfig(t, "config.yaml", "reference:\n  path: dc.xlsx\n")
	_, err := Load(path)
	assert.Error(t, err)
}
