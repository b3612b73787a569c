// Package reports exposes report generation and the report index over HTTP.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sldctools/backdown/core/logger"
	"github.com/sldctools/backdown/infra/jobs"
	reportstore "github.com/sldctools/backdown/infra/reports"
)

// Generator runs one report generation. It is implemented by app.Service.
type Generator interface {
	Generate(ctx context.Context) (jobs.Job, error)
	Jobs() *jobs.Store
	Reports() *reportstore.Store
}

// Handler serves the report API:
//
//	POST /api/jobs           start a generation (409 while one is running)
//	GET  /api/jobs/current   current job state
//	GET  /api/reports        report index, newest first
//	GET  /api/reports/{file} download one artifact
type Handler struct {
	gen   Generator
	log   logger.Logger
	token string

	mu   sync.Mutex
	busy bool
}

// New builds the handler. token, when non-empty, is required as a Bearer
// token on every request.
func New(gen Generator, token string, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop{}
	}
	return &Handler{gen: gen, log: log, token: token}
}

// Mux returns a ServeMux with all routes registered.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", h.handleJobs)
	mux.HandleFunc("/api/jobs/current", h.handleCurrentJob)
	mux.HandleFunc("/api/reports", h.handleReports)
	mux.HandleFunc("/api/reports/", h.handleDownload)
	return mux
}

func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		http.Error(w, "a generation is already running", http.StatusConflict)
		return
	}
	h.busy = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			h.busy = false
			h.mu.Unlock()
		}()
		if _, err := h.gen.Generate(context.Background()); err != nil {
			h.log.Errorf("generation failed: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

func (h *Handler) handleCurrentJob(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := h.gen.Jobs().Read()
	if err != nil {
		if errors.Is(err, jobs.ErrNoJob) {
			http.Error(w, "no job recorded", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.gen.Reports().List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []reportstore.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	if name == "" || name != filepath.Base(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, filepath.Join(h.gen.Reports().Dir(), name))
}
