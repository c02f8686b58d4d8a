// Package server exposes job submission, run history, live progress and an
// RSS feed of archived records over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tkilaker/newsminer/internal/config"
	"github.com/tkilaker/newsminer/internal/database"
	"github.com/tkilaker/newsminer/internal/models"
	"github.com/tkilaker/newsminer/internal/queue"
	"github.com/tkilaker/newsminer/internal/scraper"
)

const (
	runListLimit  = 100
	feedItemLimit = 50
	maxBodyBytes  = 1 << 20
)

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	store     database.Store
	publisher queue.Publisher
	progress  *scraper.ProgressTracker
	config    *config.Config
	log       logrus.FieldLogger
}

// New creates a new server instance. store and publisher may be nil; the
// routes that need them then answer 503.
func New(store database.Store, publisher queue.Publisher, progress *scraper.ProgressTracker, cfg *config.Config, log logrus.FieldLogger) *Server {
	if progress == nil {
		progress = scraper.NewProgressTracker()
	}
	s := &Server{
		router:    chi.NewRouter(),
		store:     store,
		publisher: publisher,
		progress:  progress,
		config:    cfg,
		log:       log,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	// The event stream outlives the request timeout
	s.router.Get("/progress/stream", s.handleProgressStream)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", s.handleIndex)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/runs", s.handleRunList)
		r.Get("/runs/{id}", s.handleRunDetail)
		r.Get("/progress", s.handleProgress)
		r.Get("/rss.xml", s.handleRSS)

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
	})
}

// Router returns the Chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

// handleIndex redirects to the run list
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/runs", http.StatusSeeOther)
}

// jobResponse is returned for an accepted job
type jobResponse struct {
	ID  string           `json:"id"`
	Job models.SearchJob `json:"job"`
}

// handleCreateJob enqueues a search job
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		http.Error(w, "Job submission is disabled", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	_, job, err := queue.DecodePayload(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid job: %v", err), http.StatusBadRequest)
		return
	}

	id, err := s.publisher.Publish(r.Context(), job)
	if err != nil {
		s.log.WithError(err).Error("Failed to publish job")
		http.Error(w, fmt.Sprintf("Failed to enqueue job: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, jobResponse{ID: id, Job: job})
}

// handleRunList renders the archived runs
func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx := r.Context()

	runs, err := s.store.ListRuns(ctx, runListLimit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch runs: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RunListPage(runs, s.progress.GetCurrent()).Render(ctx, w); err != nil {
		s.log.WithError(err).Error("Failed to render run list")
	}
}

// runDetail is a run with its records
type runDetail struct {
	*database.Run
	Records []*database.Record `json:"records"`
}

// handleRunDetail returns a run and its records as JSON
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(ctx, id)
	if errors.Is(err, database.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch run: %v", err), http.StatusInternalServerError)
		return
	}

	records, err := s.store.RunRecords(ctx, id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch records: %v", err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*database.Record{}
	}

	writeJSON(w, http.StatusOK, runDetail{Run: run, Records: records})
}

// handleProgress returns the current progress snapshot
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.progress.GetCurrent())
}

// handleProgressStream pushes progress updates as server-sent events
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.progress.Subscribe()
	defer s.progress.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.log.WithError(err).Error("Failed to encode progress update")
				return
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleRSS generates and serves the RSS feed
func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	ctx := r.Context()

	records, err := s.store.RecentRecords(ctx, feedItemLimit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch records: %v", err), http.StatusInternalServerError)
		return
	}

	// Generate RSS feed
	feed, err := GenerateRSSFeed(records, s.config)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate feed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(feed))
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		http.Error(w, "Run archive is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
