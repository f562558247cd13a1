// Package api exposes sync and cached reads over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"competesync/pkg/logger"
	"competesync/pkg/metrics"
	"competesync/pkg/paginator"
	"competesync/pkg/simplycompete"
	"competesync/pkg/storage"
	"competesync/pkg/syncer"
)

// Syncer runs remote syncs
type Syncer interface {
	SyncCompetitions(ctx context.Context) syncer.Result
	SyncParticipants(ctx context.Context, eventID, nodeID string) syncer.Result
}

// Reader reads cached items and sync history
type Reader interface {
	List(ctx context.Context, collection, orderField string) ([]paginator.RawItem, error)
	LastRun(ctx context.Context, collection, resource string) (*storage.Run, error)
}

// Server routes HTTP requests to the syncer and the store
type Server struct {
	syncer  Syncer
	store   Reader
	metrics *metrics.Metrics
	logger  logger.Logger
	mux     *http.ServeMux
}

// SyncResponse is the body of every sync endpoint
type SyncResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message"`
	Count    int                 `json:"count"`
	Items    []paginator.RawItem `json:"items"`
	Reason   string              `json:"reason"`
	Complete bool                `json:"complete"`
	Pages    int                 `json:"pages"`
	Error    string              `json:"error,omitempty"`
	RunID    string              `json:"runId,omitempty"`
}

// ListResponse is the body of the cached read endpoints
type ListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Items   []paginator.RawItem `json:"items"`
	LastRun *storage.Run        `json:"lastRun,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var endpoints = []string{
	"GET /",
	"GET /competitions/sync",
	"GET /competitions",
	"GET /events/{eventID}/participants/sync?nodeId=",
	"GET /events/{eventID}/participants",
	"GET /metrics",
}

// New creates a Server. m may be nil, in which case /metrics is not served.
func New(s Syncer, store Reader, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.Component("api")
	}
	srv := &Server{syncer: s, store: store, metrics: m, logger: log, mux: http.NewServeMux()}

	srv.mux.HandleFunc("GET /{$}", srv.handleHealth)
	srv.mux.HandleFunc("GET /competitions/sync", srv.handleSyncCompetitions)
	srv.mux.HandleFunc("GET /competitions", srv.handleListCompetitions)
	srv.mux.HandleFunc("GET /events/{eventID}/participants/sync", srv.handleSyncParticipants)
	srv.mux.HandleFunc("GET /events/{eventID}/participants", srv.handleListParticipants)
	if m != nil {
		srv.mux.Handle("GET /metrics", m.Handler())
	}
	return srv
}

// Handler returns the routed handler wrapped with request logging
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		logger.LogRequest(s.logger, r.Method, r.URL.Path, rec.status, time.Since(start).Milliseconds())
	})
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("listening", map[string]interface{}{"address": addr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"endpoints": endpoints,
	})
}

func (s *Server) handleSyncCompetitions(w http.ResponseWriter, r *http.Request) {
	result := s.syncer.SyncCompetitions(r.Context())
	s.writeSync(w, result, "competitions")
}

func (s *Server) handleSyncParticipants(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	result := s.syncer.SyncParticipants(r.Context(), eventID, r.URL.Query().Get("nodeId"))
	s.writeSync(w, result, "participants")
}

func (s *Server) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	s.writeList(w, r, simplycompete.CompetitionsCollection, simplycompete.CompetitionsCollection, "", "startDate")
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	s.writeList(w, r, simplycompete.ParticipantsKey(eventID), simplycompete.ParticipantsCollection, eventID, "")
}

// writeSync maps a sync result to a status: an empty list that was read to its
// end is 404, an empty list from a failed fetch is 502, anything stored is 200.
func (s *Server) writeSync(w http.ResponseWriter, result syncer.Result, noun string) {
	body := SyncResponse{
		Count:    result.Count,
		Items:    result.Items,
		Reason:   string(result.Reason),
		Complete: result.Complete(),
		Pages:    result.Pages,
		RunID:    result.RunID,
	}
	if body.Items == nil {
		body.Items = []paginator.RawItem{}
	}
	if result.Err != nil {
		body.Error = result.Err.Error()
	}

	status := http.StatusOK
	switch {
	case result.StoreErr != nil:
		status = http.StatusInternalServerError
		body.Message = fmt.Sprintf("failed to store %s", noun)
		body.Error = result.StoreErr.Error()
	case result.Count == 0 && result.Reason == paginator.ReasonFailed:
		status = http.StatusBadGateway
		body.Message = fmt.Sprintf("could not fetch %s", noun)
	case result.Count == 0:
		status = http.StatusNotFound
		body.Message = fmt.Sprintf("no %s found", noun)
	case !result.Complete():
		body.Success = true
		body.Message = fmt.Sprintf("synced %d %s (partial: %s)", result.Count, noun, result.Reason)
	default:
		body.Success = true
		body.Message = fmt.Sprintf("synced %d %s", result.Count, noun)
	}

	writeJSON(w, status, body)
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, key, collection, resource, orderField string) {
	items, err := s.store.List(r.Context(), key, orderField)
	if err != nil {
		s.logger.WithError(err).ErrorWithFields("failed to list items", map[string]interface{}{"collection": key})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to read cached items"})
		return
	}

	last, err := s.store.LastRun(r.Context(), collection, resource)
	if err != nil {
		s.logger.WithError(err).Warn("failed to read last sync run")
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Success: true,
		Count:   len(items),
		Items:   items,
		LastRun: last,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
