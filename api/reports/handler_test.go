package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/infra/jobs"
	reportstore "github.com/sldctools/backdown/infra/reports"
)

type fakeGenerator struct {
	jobs    *jobs.Store
	reports *reportstore.Store
	run     func(ctx context.Context) (jobs.Job, error)
}

func (f *fakeGenerator) Generate(ctx context.Context) (jobs.Job, error) {
	if f.run != nil {
		return f.run(ctx)
	}
	return jobs.Job{}, nil
}
func (f *fakeGenerator) Jobs() *jobs.Store           { return f.jobs }
func (f *fakeGenerator) Reports() *reportstore.Store { return f.reports }

func newFake(t *testing.T) *fakeGenerator {
	t.Helper()
	dir := t.TempDir()
	store, err := reportstore.NewStore(filepath.Join(dir, "out"), filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &fakeGenerator{
		jobs:    jobs.NewStore(filepath.Join(dir, "job.json")),
		reports: store,
	}
}

func TestPostJobStartsGeneration(t *testing.T) {
	fake := newFake(t)
	done := make(chan struct{})
	fake.run = func(context.Context) (jobs.Job, error) {
		close(done)
		return jobs.Job{}, nil
	}
	h := New(fake, "", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("generation never started")
	}
}

func TestPostJobConflictWhileBusy(t *testing.T) {
	fake := newFake(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fake.run = func(context.Context) (jobs.Job, error) {
		close(started)
		<-release
		return jobs.Job{}, nil
	}
	h := New(fake, "", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-started

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	close(release)
}

func TestGetCurrentJob(t *testing.T) {
	fake := newFake(t)
	h := New(fake, "", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/current", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no job recorded yet")

	started, err := fake.jobs.Begin("HNPCL")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, started.ID, job.ID)
	assert.Equal(t, jobs.StatusPending, job.Status)
}

func TestListReports(t *testing.T) {
	fake := newFake(t)
	h := New(fake, "", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	require.NoError(t, fake.reports.Append(context.Background(), reportstore.Entry{
		Filename: "hnpcl.xlsx", Station: "HNPCL", RunAt: time.Now(),
	}))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []reportstore.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "hnpcl.xlsx", entries[0].Filename)
}

func TestDownloadReport(t *testing.T) {
	fake := newFake(t)
	_, err := fake.reports.Save("hnpcl.xlsx", strings.NewReader("workbook bytes"))
	require.NoError(t, err)
	h := New(fake, "", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/hnpcl.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "workbook bytes", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/missing.xlsx", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerToken(t *testing.T) {
	fake := newFake(t)
	h := New(fake, "secret", logger.Nop{}).Mux()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
