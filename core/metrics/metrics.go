package metrics

import "time"

// RunSummary captures the counters of one completed report run.
type RunSummary struct {
	Station      string
	Instructions int
	Rows         int
	Slots        int
	RefFound     int
	RefMissing   int
	TelFound     int
	TelMissing   int
	Duration     time.Duration
	Time         time.Time
}

// Sink records run summaries for observability purposes.
type Sink interface {
	RecordRun(RunSummary) error
}

// ProgressRecorder is implemented by sinks that also track in-flight slot
// progress.
type ProgressRecorder interface {
	RecordProgress(processed, total int) error
}

// NopSink ignores all records.
type NopSink struct{}

func (NopSink) RecordRun(RunSummary) error { return nil }

// MultiSink fans records out to several sinks, returning the first error.
type MultiSink struct{ sinks []Sink }

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...Sink) *MultiSink { return &MultiSink{sinks: sinks} }

func (m *MultiSink) RecordRun(s RunSummary) error {
	var first error
	for _, sink := range m.sinks {
		if err := sink.RecordRun(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) RecordProgress(processed, total int) error {
	var first error
	for _, sink := range m.sinks {
		if r, ok := sink.(ProgressRecorder); ok {
			if err := r.RecordProgress(processed, total); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
