// Package admin exposes the producer's control surface over HTTP: per-type
// status, backfill lifecycle operations, health and metrics.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roadmirror/internal/producer"
	"roadmirror/internal/producer/progress"
)

// Control is the producer surface the admin API drives.
// *producer.Producer satisfies it.
type Control interface {
	StartBackfill(ctx context.Context, typeID int) error
	StopBackfill(ctx context.Context, typeID int) error
	ResetBackfill(ctx context.Context, typeID int) error
	GetStatus(ctx context.Context, typeID int) (*progress.Record, error)
}

// Triggerer requests an immediate tick, so a freshly started backfill does
// not wait out a full scheduling interval. May be nil.
type Triggerer interface {
	Trigger(typeID int)
}

// Server is the admin HTTP server.
type Server struct {
	control   Control
	trigger   Triggerer
	types     map[int]bool
	logger    *slog.Logger
	startedAt time.Time
	http      *http.Server
}

// NewServer creates the admin server for the given monitored types.
func NewServer(addr string, control Control, trigger Triggerer, types []int, logger *slog.Logger) *Server {
	known := make(map[int]bool, len(types))
	for _, t := range types {
		known[t] = true
	}

	s := &Server{
		control:   control,
		trigger:   trigger,
		types:     known,
		logger:    logger.With("component", "admin"),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /producer/{type}", s.handleStatus)
	mux.HandleFunc("POST /producer/{type}/start", s.handleStart)
	mux.HandleFunc("POST /producer/{type}/stop", s.handleStop)
	mux.HandleFunc("POST /producer/{type}/reset", s.handleReset)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("admin server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// typeStatus is the JSON shape of one type's progress.
type typeStatus struct {
	TypeID              int        `json:"typeId"`
	Mode                string     `json:"mode"`
	LastProcessedID     *int64     `json:"lastProcessedId,omitempty"`
	ChangeID            *int64     `json:"changeId,omitempty"`
	BackfillStartedAt   *time.Time `json:"backfillStartedAt,omitempty"`
	BackfillCompletedAt *time.Time `json:"backfillCompletedAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func statusFromRecord(rec *progress.Record) typeStatus {
	return typeStatus{
		TypeID:              rec.TypeID,
		Mode:                string(rec.Mode),
		LastProcessedID:     rec.LastProcessedID,
		ChangeID:            rec.ChangeID,
		BackfillStartedAt:   rec.BackfillStartedAt,
		BackfillCompletedAt: rec.BackfillCompletedAt,
		LastError:           rec.LastError,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := struct {
		Status    string       `json:"status"`
		Uptime    string       `json:"uptime"`
		StartedAt time.Time    `json:"startedAt"`
		Types     []typeStatus `json:"types"`
	}{
		Status:    "ok",
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt: s.startedAt,
	}

	for typeID := range s.types {
		rec, err := s.control.GetStatus(r.Context(), typeID)
		if err != nil || rec == nil {
			continue
		}
		report.Types = append(report.Types, statusFromRecord(rec))
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	typeID, ok := s.typeID(w, r)
	if !ok {
		return
	}

	rec, err := s.control.GetStatus(r.Context(), typeID)
	if err != nil {
		s.logger.Error("status lookup failed", "type", typeID, "error", err)
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "type not initialized", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statusFromRecord(rec))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	typeID, ok := s.typeID(w, r)
	if !ok {
		return
	}

	err := s.control.StartBackfill(r.Context(), typeID)
	switch {
	case errors.Is(err, producer.ErrBackfillInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("start backfill failed", "type", typeID, "error", err)
		http.Error(w, "start backfill failed", http.StatusInternalServerError)
		return
	}

	if s.trigger != nil {
		s.trigger.Trigger(typeID)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	typeID, ok := s.typeID(w, r)
	if !ok {
		return
	}

	if err := s.control.StopBackfill(r.Context(), typeID); err != nil {
		s.logger.Error("stop backfill failed", "type", typeID, "error", err)
		http.Error(w, "stop backfill failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	typeID, ok := s.typeID(w, r)
	if !ok {
		return
	}

	if err := s.control.ResetBackfill(r.Context(), typeID); err != nil {
		s.logger.Error("reset backfill failed", "type", typeID, "error", err)
		http.Error(w, "reset backfill failed", http.StatusInternalServerError)
		return
	}

	if s.trigger != nil {
		s.trigger.Trigger(typeID)
	}
	w.WriteHeader(http.StatusAccepted)
}

// typeID parses and validates the {type} path segment.
func (s *Server) typeID(w http.ResponseWriter, r *http.Request) (int, bool) {
	typeID, err := strconv.Atoi(r.PathValue("type"))
	if err != nil {
		http.Error(w, "invalid type id", http.StatusBadRequest)
		return 0, false
	}
	if !s.types[typeID] {
		http.Error(w, "unknown type", http.StatusNotFound)
		return 0, false
	}
	return typeID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
