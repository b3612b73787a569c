// Package app wires configuration, spreadsheet sources, the ramp calculator
// and the report stores into one runnable service.
package app

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sldctools/backdown/config"
	"github.com/sldctools/backdown/core/locate"
	"github.com/sldctools/backdown/core/logger"
	coremetrics "github.com/sldctools/backdown/core/metrics"
	"github.com/sldctools/backdown/core/model"
	"github.com/sldctools/backdown/core/ramp"
	"github.com/sldctools/backdown/infra/jobs"
	inframetrics "github.com/sldctools/backdown/infra/metrics"
	"github.com/sldctools/backdown/infra/reports"
	"github.com/sldctools/backdown/infra/xlsx"
)

// Service owns one report pipeline: reading instructions, deriving the ramp
// ledger and writing the indexed report artifact. Lookup caches are created
// per run and always released before Generate returns.
type Service struct {
	cfg  *config.Config
	log  logger.Logger
	jobs *jobs.Store
	idx  *reports.Store
	sink *coremetrics.MultiSink
}

// New builds the service and its stores. The metrics sinks named by the
// configuration are attached; a failing Influx instance degrades to a nop.
func New(cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop{}
	}
	idx, err := reports.NewStore(cfg.Report.OutputDir, cfg.Report.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("open report index: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		prom, err := inframetrics.NewPromSink()
		if err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("register prometheus metrics: %w", err)
		}
		sinks = append(sinks, prom)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, inframetrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}

	return &Service{
		cfg:  cfg,
		log:  log,
		jobs: jobs.NewStore(cfg.Report.JobFile),
		idx:  idx,
		sink: coremetrics.NewMultiSink(sinks...),
	}, nil
}

// Jobs exposes the job store for the API layer.
func (s *Service) Jobs() *jobs.Store { return s.jobs }

// Reports exposes the report index for the API layer.
func (s *Service) Reports() *reports.Store { return s.idx }

// Stations lists the distinct station names in the configured instructions
// workbook.
func (s *Service) Stations() ([]string, string, error) {
	ins := s.cfg.Instructions
	return xlsx.ListStations(ins.Path, ins.Sheet, ins.StationColumn, ins.MaxHeaderRows)
}

// Generate runs one full report generation and returns the finished job
// state. Structural source failures and cancellation mark the job as errored;
// the job file always reflects the outcome.
func (s *Service) Generate(ctx context.Context) (jobs.Job, error) {
	station := s.cfg.Instructions.Station
	job, err := s.jobs.Begin(station)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("record job: %w", err)
	}
	start := time.Now()

	result, title, err := s.run(ctx, station)
	if err != nil {
		return s.fail(err)
	}

	filename := reportFilename(station, start)
	wb, err := xlsx.BuildReport(result.Rows, title)
	if err != nil {
		return s.fail(fmt.Errorf("build report: %w", err))
	}
	var buf bytes.Buffer
	if werr := wb.Write(&buf); werr != nil {
		_ = wb.Close()
		return s.fail(fmt.Errorf("encode report: %w", werr))
	}
	_ = wb.Close()
	if _, err := s.idx.Save(filename, &buf); err != nil {
		return s.fail(fmt.Errorf("save report: %w", err))
	}

	dateFrom, dateTo := dateRange(result.Rows)
	if err := s.idx.Append(ctx, reports.Entry{
		Filename:          filename,
		Station:           station,
		DateFrom:          dateFrom,
		DateTo:            dateTo,
		RunAt:             start.UTC(),
		RowCount:          len(result.Rows),
		TotalInstructions: result.Instructions,
	}); err != nil {
		s.log.Errorf("index report: %v", err)
	}

	summary := coremetrics.RunSummary{
		Station:      station,
		Instructions: result.Instructions,
		Rows:         len(result.Rows),
		Slots:        result.Slots,
		RefFound:     result.RefFound,
		RefMissing:   result.RefMissing,
		TelFound:     result.TelFound,
		TelMissing:   result.TelMissing,
		Duration:     time.Since(start),
		Time:         start.UTC(),
	}
	if err := s.sink.RecordRun(summary); err != nil {
		s.log.Warnf("record run metrics: %v", err)
	}
	s.log.Infof("report %s: %d instructions, %d rows, ref %d/%d, tel %d/%d in %s",
		filename, summary.Instructions, summary.Rows,
		summary.RefFound, summary.RefFound+summary.RefMissing,
		summary.TelFound, summary.TelFound+summary.TelMissing, summary.Duration)

	job, err = s.jobs.Update(func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.ProcessedSlots = result.Slots
		j.TotalSlots = result.Slots
		j.OutputFilename = filename
		j.FinishedAt = time.Now().UTC()
	})
	if err != nil {
		return jobs.Job{}, fmt.Errorf("record job completion: %w", err)
	}
	return job, nil
}

// run executes the calculator against freshly opened sources. Every cache
// opened here is released before return.
func (s *Service) run(ctx context.Context, station string) (ramp.Result, string, error) {
	ins := s.cfg.Instructions
	instructions, err := xlsx.ReadInstructions(ins.Path, ins.Sheet, ins.StationColumn, station, ins.MaxHeaderRows)
	if err != nil {
		return ramp.Result{}, "", err
	}
	if _, err := s.jobs.Update(func(j *jobs.Job) {
		j.Status = jobs.StatusRunning
		j.CurrentDate = instructions[0].Date
	}); err != nil {
		s.log.Warnf("record job start: %v", err)
	}

	var ref ramp.ReferenceLookup
	if s.cfg.Reference.Path != "" {
		lookup, err := xlsx.NewReferenceLookup(s.cfg.Reference.Path, s.cfg.Ramp.MaxHeaderScanRows, s.log)
		if err != nil {
			return ramp.Result{}, "", err
		}
		defer func() { _ = lookup.Close() }()
		ref = lookup
	}
	var tel ramp.TelemetryLookup
	if s.cfg.Telemetry.Dir != "" {
		cache, err := xlsx.NewTelemetryCache(s.cfg.Telemetry.Dir, s.cfg.Telemetry.Sheet,
			s.cfg.Telemetry.ValueColumn, s.cfg.Ramp.MaxHeaderScanRows, s.log)
		if err != nil {
			return ramp.Result{}, "", err
		}
		defer cache.CloseAll()
		tel = cache
	}

	calc := ramp.New(s.cfg.Ramp, ref, tel, s.log,
		ramp.WithProgress(s.onProgress, s.cfg.Report.ProgressBatch))
	result, err := calc.Run(ctx, instructions)
	if err != nil {
		return ramp.Result{}, "", err
	}
	return result, s.title(instructions), nil
}

func (s *Service) onProgress(processed, total int) {
	if _, err := s.jobs.Update(func(j *jobs.Job) {
		j.ProcessedSlots = processed
		j.TotalSlots = total
	}); err != nil {
		s.log.Warnf("record progress: %v", err)
	}
	if err := s.sink.RecordProgress(processed, total); err != nil {
		s.log.Warnf("record progress metrics: %v", err)
	}
}

func (s *Service) fail(err error) (jobs.Job, error) {
	job, uerr := s.jobs.Update(func(j *jobs.Job) {
		j.Status = jobs.StatusError
		j.ErrorMessage = err.Error()
		j.FinishedAt = time.Now().UTC()
	})
	if uerr != nil {
		s.log.Errorf("record job failure: %v", uerr)
	}
	return job, err
}

// title prefers the configured report title, falling back to the
// instructions' date span.
func (s *Service) title(instructions []model.Instruction) string {
	if s.cfg.Report.Title != "" {
		return s.cfg.Report.Title
	}
	var dates []string
	for _, ins := range instructions {
		if ins.Date != "" {
			dates = append(dates, ins.Date)
		}
	}
	from, to := minMaxDates(dates)
	switch {
	case from == "":
		return "Back Down Report"
	case from == to:
		return fmt.Sprintf("Back Down Report from %s", from)
	default:
		return fmt.Sprintf("Back Down Report from %s to %s", from, to)
	}
}

// Close releases the report index.
func (s *Service) Close() error { return s.idx.Close() }

func reportFilename(station string, at time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(station))
	slug = strings.Join(strings.Fields(slug), "_")
	if slug == "" {
		slug = "all_stations"
	}
	return fmt.Sprintf("%s_%s.xlsx", slug, at.Format("20060102_150405"))
}

// dateRange extracts the first and last block dates from the ledger.
func dateRange(rows []model.OutputRow) (string, string) {
	var dates []string
	for _, r := range rows {
		if r.Date != "" {
			dates = append(dates, r.Date)
		}
	}
	return minMaxDates(dates)
}

func minMaxDates(dates []string) (string, string) {
	if len(dates) == 0 {
		return "", ""
	}
	sort.Slice(dates, func(i, j int) bool {
		ti, oki := locate.ParseDate(dates[i])
		tj, okj := locate.ParseDate(dates[j])
		if oki && okj {
			return ti.Before(tj)
		}
		return dates[i] < dates[j]
	})
	return dates[0], dates[len(dates)-1]
}
