// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sldctools/backdown/core/model"
)

type Config struct {
	Instructions InstructionsConfig `json:"instructions"`
	Reference    ReferenceConfig    `json:"reference"`
	Telemetry    TelemetryConfig    `json:"telemetry"`
	Ramp         model.Tunables     `json:"ramp"`
	Report       ReportConfig       `json:"report"`
	Metrics      MetricsConfig      `json:"metrics"`
	Server       ServerConfig       `json:"server"`
}

// InstructionsConfig locates the back-down instructions workbook.
type InstructionsConfig struct {
	Path          string `json:"path"`
	Sheet         string `json:"sheet"`
	StationColumn string `json:"stationColumn"`
	Station       string `json:"station"`
	MaxHeaderRows int    `json:"maxHeaderRows"`
}

func (c *InstructionsConfig) SetDefaults() {
	if c.StationColumn == "" {
		c.StationColumn = "Name of the station"
	}
	if c.MaxHeaderRows <= 0 {
		c.MaxHeaderRows = 10
	}
}

func (c InstructionsConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("instructions.path is required")
	}
	return nil
}

// ReferenceConfig locates the declared-capacity workbook.
type ReferenceConfig struct {
	Path string `json:"path"`
}

// TelemetryConfig locates the per-day SCADA workbooks.
type TelemetryConfig struct {
	Dir         string `json:"dir"`
	Sheet       string `json:"sheet"`
	ValueColumn string `json:"valueColumn"`
}

// ReportConfig controls the generated workbook and run bookkeeping.
type ReportConfig struct {
	Title         string `json:"title"`
	OutputDir     string `json:"outputDir"`
	IndexPath     string `json:"indexPath"`
	JobFile       string `json:"jobFile"`
	ProgressBatch int    `json:"progressBatch"`
}

func (c *ReportConfig) SetDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "reports"
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(c.OutputDir, "reports.db")
	}
	if c.JobFile == "" {
		c.JobFile = filepath.Join(c.OutputDir, "job.json")
	}
	if c.ProgressBatch <= 0 {
		c.ProgressBatch = 5
	}
}

// MetricsConfig enables the optional observability sinks.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheusEnabled"`
	PrometheusPort    int    `json:"prometheusPort"`
	InfluxEnabled     bool   `json:"influxEnabled"`
	InfluxURL         string `json:"influxUrl"`
	InfluxToken       string `json:"influxToken"`
	InfluxOrg         string `json:"influxOrg"`
	InfluxBucket      string `json:"influxBucket"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusPort <= 0 {
		c.PrometheusPort = 9090
	}
}

func (c MetricsConfig) Validate() error {
	if c.InfluxEnabled && c.InfluxURL == "" {
		return fmt.Errorf("metrics.influxUrl is required when influx is enabled")
	}
	return nil
}

// ServerConfig configures the report API.
type ServerConfig struct {
	Addr      string `json:"addr"`
	AuthToken string `json:"authToken"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Load reads the configuration file at path, applies BD_ environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("BD_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "bd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Instructions.SetDefaults()
	c.Report.SetDefaults()
	c.Metrics.SetDefaults()
	c.Server.SetDefaults()
	c.Ramp = defaultedTunables(c.Ramp)
}

// defaultedTunables fills zero-valued ramp parameters with the defaults, so a
// partially specified ramp section keeps the standard rates.
func defaultedTunables(t model.Tunables) model.Tunables {
	def := model.DefaultTunables()
	if t.RampUp5 == 0 {
		t.RampUp5 = def.RampUp5
	}
	if t.RampUp10 == 0 {
		t.RampUp10 = def.RampUp10
	}
	if t.RampUp15 == 0 {
		t.RampUp15 = def.RampUp15
	}
	if t.RampDown5 == 0 {
		t.RampDown5 = def.RampDown5
	}
	if t.RampDown10 == 0 {
		t.RampDown10 = def.RampDown10
	}
	if t.RampDown15 == 0 {
		t.RampDown15 = def.RampDown15
	}
	if t.MinimumLoadFloor == 0 {
		t.MinimumLoadFloor = def.MinimumLoadFloor
	}
	if t.MaxHeaderScanRows <= 0 {
		t.MaxHeaderScanRows = def.MaxHeaderScanRows
	}
	return t
}

func (c *Config) Validate() error {
	if err := c.Instructions.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
