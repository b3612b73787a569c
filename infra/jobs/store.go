// Package jobs tracks the state of report-generation runs in a JSON file so
// progress survives across processes and is cheap to poll.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// ErrNoJob is returned when no run has been recorded yet.
var ErrNoJob = errors.New("no job recorded")

// Job is the state of one report-generation run.
type Job struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Station        string    `json:"station"`
	ProcessedSlots int       `json:"processed_slots"`
	TotalSlots     int       `json:"total_slots"`
	ProgressPct    float64   `json:"progress_pct"`
	CurrentDate    string    `json:"current_date,omitempty"`
	OutputFilename string    `json:"output_filename,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
}

// Active reports whether the job is still in flight.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// Store persists the current job state atomically to a single JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store writing to path. The parent directory is created
// on the first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Begin records a fresh pending job and returns it.
func (s *Store) Begin(station string) (Job, error) {
	now := time.Now().UTC()
	j := Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Station:   station,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.Write(j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Read returns the recorded job state.
func (s *Store) Read() (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Job{}, ErrNoJob
		}
		return Job{}, err
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, fmt.Errorf("decode job file: %w", err)
	}
	return j, nil
}

// Write replaces the recorded job state. The file is written to a temp name
// and renamed so readers never observe a partial write.
func (s *Store) Write(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.UpdatedAt = time.Now().UTC()
	b, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Update applies fn to the recorded job and writes the result back. A missing
// file is an error; use Begin to start a job.
func (s *Store) Update(fn func(*Job)) (Job, error) {
	j, err := s.Read()
	if err != nil {
		return Job{}, err
	}
	fn(&j)
	if j.TotalSlots > 0 {
		j.ProgressPct = float64(j.ProcessedSlots) / float64(j.TotalSlots) * 100
	}
	if err := s.Write(j); err != nil {
		return Job{}, err
	}
	return j, nil
}
