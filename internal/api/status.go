// Package api exposes a small operational HTTP surface: liveness and the
// last run's summary.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/pipeline"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusServer serves the operational endpoints.
type StatusServer struct {
	srv    *http.Server
	db     HealthChecker
	logger zerolog.Logger

	mu   sync.RWMutex
	last *pipeline.Summary
}

// NewStatusServer builds the server bound to addr. db may be nil, in
// which case /healthz only reports process liveness.
func NewStatusServer(addr string, db HealthChecker, logger zerolog.Logger) *StatusServer {
	s := &StatusServer{
		db:     db,
		logger: logger.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/runs/last", s.handleLastRun).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// SetSummary records the most recent run for /api/v1/runs/last.
func (s *StatusServer) SetSummary(sum *pipeline.Summary) {
	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()
}

// Start serves until Shutdown. Intended to run in its own goroutine.
func (s *StatusServer) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("status server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	writeJSON(w, code, status)
}

func (s *StatusServer) handleLastRun(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
