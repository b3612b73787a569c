// Package metrics provides the Prometheus and InfluxDB implementations of
// the run-summary sink.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/sldctools/backdown/core/metrics"
)

// PromSink records report runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	slots    *prometheus.CounterVec
	lookups  *prometheus.CounterVec
	duration prometheus.Histogram
	progress prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backdown_runs_total",
		Help: "Total number of report generation runs",
	}, []string{"station"})
	slots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backdown_slots_processed_total",
		Help: "Total number of 15-minute slots processed",
	}, []string{"station"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backdown_lookups_total",
		Help: "Source lookups by source and outcome",
	}, []string{"source", "outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "backdown_run_duration_seconds",
		Help:    "Wall time of a full report generation run",
		Buckets: prometheus.DefBuckets,
	})
	progress := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backdown_run_progress_ratio",
		Help: "Fraction of slots processed in the current run",
	})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(slots); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			slots = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(lookups); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			lookups = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(progress); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			progress = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{runs: runs, slots: slots, lookups: lookups, duration: duration, progress: progress}, nil
}

// RecordRun increments the run counters and observes the run duration.
func (s *PromSink) RecordRun(r coremetrics.RunSummary) error {
	s.runs.WithLabelValues(r.Station).Inc()
	s.slots.WithLabelValues(r.Station).Add(float64(r.Slots))
	s.lookups.WithLabelValues("reference", "found").Add(float64(r.RefFound))
	s.lookups.WithLabelValues("reference", "missing").Add(float64(r.RefMissing))
	s.lookups.WithLabelValues("telemetry", "found").Add(float64(r.TelFound))
	s.lookups.WithLabelValues("telemetry", "missing").Add(float64(r.TelMissing))
	s.duration.Observe(r.Duration.Seconds())
	return nil
}

// RecordProgress sets the progress gauge to the processed fraction.
func (s *PromSink) RecordProgress(processed, total int) error {
	if total > 0 {
		s.progress.Set(float64(processed) / float64(total))
	}
	return nil
}
