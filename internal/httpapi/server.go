// Package httpapi exposes the console control surface: call lifecycle,
// call log, knowledge base management and health endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/deptdesk/deskline/internal/analysis"
	"github.com/deptdesk/deskline/internal/call"
	"github.com/deptdesk/deskline/internal/capture"
	"github.com/deptdesk/deskline/internal/knowledge"
	"github.com/deptdesk/deskline/internal/live"
	"github.com/deptdesk/deskline/internal/observability"
	"github.com/deptdesk/deskline/internal/record"
)

// CallController is the call lifecycle surface the API drives.
type CallController interface {
	StartCall(ctx context.Context) (call.Info, error)
	Hangup() error
	SetMuted(muted bool) error
	Snapshot() call.Snapshot
}

// Analyzer covers the on-demand analysis operations.
type Analyzer interface {
	SmartAlerts(ctx context.Context, logs []record.CallRecord) ([]analysis.Alert, error)
	RefinePrompt(ctx context.Context, script, emergencyNumber string) (string, error)
}

type Server struct {
	controller CallController
	store      record.Store
	kb         *knowledge.Base
	analyzer   Analyzer
	metrics    *observability.Metrics
	log        *zap.SugaredLogger
}

func New(controller CallController, store record.Store, kb *knowledge.Base, analyzer Analyzer, metrics *observability.Metrics, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		controller: controller,
		store:      store,
		kb:         kb,
		analyzer:   analyzer,
		metrics:    metrics,
		log:        log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/call/start", s.handleStartCall)
	r.Post("/v1/call/hangup", s.handleHangup)
	r.Post("/v1/call/mute", s.handleMute)
	r.Get("/v1/call", s.handleCallState)
	r.Get("/v1/calls", s.handleListCalls)
	r.Get("/v1/alerts", s.handleAlerts)

	r.Get("/v1/knowledge/students", s.handleGetStudents)
	r.Put("/v1/knowledge/students", s.handlePutStudents)
	r.Get("/v1/knowledge/events", s.handleGetEvents)
	r.Put("/v1/knowledge/events", s.handlePutEvents)
	r.Get("/v1/knowledge/faqs", s.handleGetFAQs)
	r.Put("/v1/knowledge/faqs", s.handlePutFAQs)
	r.Get("/v1/knowledge/contacts", s.handleGetContacts)
	r.Put("/v1/knowledge/contacts", s.handlePutContacts)
	r.Get("/v1/knowledge/agent", s.handleGetAgent)
	r.Put("/v1/knowledge/agent", s.handlePutAgent)
	r.Post("/v1/knowledge/agent/refine", s.handleRefineAgent)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"state":  s.controller.Snapshot().State,
	})
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	info, err := s.controller.StartCall(r.Context())
	switch {
	case errors.Is(err, call.ErrSessionBusy):
		respondError(w, http.StatusConflict, "session_busy", err.Error())
		return
	case errors.Is(err, capture.ErrMicrophoneUnavailable):
		respondError(w, http.StatusServiceUnavailable, "microphone_unavailable", err.Error())
		return
	case errors.Is(err, live.ErrConnectionFailed):
		respondError(w, http.StatusBadGateway, "connection_failed", err.Error())
		return
	case err != nil:
		s.log.Errorw("start call failed", "error", err)
		respondError(w, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleHangup(w http.ResponseWriter, _ *http.Request) {
	if err := s.controller.Hangup(); err != nil {
		respondError(w, http.StatusNotFound, "no_active_call", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.controller.SetMuted(req.Muted); err != nil {
		respondError(w, http.StatusNotFound, "no_active_call", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleCallState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.log.Errorw("listing call records failed", "error", err)
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if recs == nil {
		recs = []record.CallRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"calls": recs})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.Recent(r.Context(), 10)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	alerts, err := s.analyzer.SmartAlerts(r.Context(), recs)
	if err != nil {
		s.log.Warnw("smart alerts failed", "error", err)
		respondError(w, http.StatusBadGateway, "analysis_failed", err.Error())
		return
	}
	if alerts == nil {
		alerts = []analysis.Alert{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
