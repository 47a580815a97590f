// Package http exposes the concierge run API over HTTP with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/runner"
)

// Engine is the run API served over HTTP. *concierge.Engine implements it.
type Engine interface {
	Start(ctx context.Context, request string) (domain.Outcome, error)
	StartWithID(ctx context.Context, runID, request string) (domain.Outcome, error)
	Resume(ctx context.Context, runID string, approval domain.Approval) (domain.Outcome, error)
	Continue(ctx context.Context, runID, message string) (domain.Outcome, error)
	Inspect(ctx context.Context, runID string) (*domain.TaskState, error)
	Transcript(ctx context.Context, runID string) ([]domain.Message, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, runID string) error
	Graph() *domain.Graph
}

// Journal serves the recent events of a run.
type Journal interface {
	Events(runID string) []observability.Entry
}

// Server holds the handlers of the run API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Journal Journal
	Logger  *slog.Logger
	Version string

	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a stream manager whose hooks are installed on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithJournal enables GET /runs/{id}/events.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.Journal = j }
}

// WithMetricsHandler mounts a metrics endpoint (e.g. promhttp) on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Logger:  logging.NewNop(),
		Version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.StartRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.GetRun)
			r.Delete("/", s.DeleteRun)
			r.Get("/transcript", s.GetTranscript)
			r.Get("/events", s.GetEvents)
			r.Get("/stream", s.SubscribeRun)
			r.Post("/resume", s.ResumeRun)
			r.Post("/continue", s.ContinueRun)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest is the body of POST /runs.
type StartRequest struct {
	RunID   string `json:"run_id,omitempty"`
	Request string `json:"request"`
}

// ContinueRequest is the body of POST /runs/{id}/continue.
type ContinueRequest struct {
	Message string `json:"message"`
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotPending), errors.Is(err, domain.ErrRunFinished), errors.Is(err, domain.ErrRunExists),
		errors.Is(err, domain.ErrNotCompleted):
		status = http.StatusConflict
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		status = 499
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "error", err)
	} else {
		s.Logger.Warn(op+" rejected", "error", err, "status", status)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.Logger.Warn(op+": invalid request body", "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// StartRun handles POST /runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if !s.decode(w, r, "StartRun", &body) {
		return
	}
	request, err := runner.SanitizeRequest(body.Request)
	if err != nil {
		s.writeError(w, "StartRun", err)
		return
	}
	if request == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request is required"})
		return
	}

	var out domain.Outcome
	if body.RunID != "" {
		out, err = s.Engine.StartWithID(r.Context(), body.RunID, request)
	} else {
		out, err = s.Engine.Start(r.Context(), request)
	}
	if err != nil {
		s.writeError(w, "StartRun", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, out)
}

// ResumeRun handles POST /runs/{id}/resume with an approval body.
func (s *Server) ResumeRun(w http.ResponseWriter, r *http.Request) {
	var approval domain.Approval
	if !s.decode(w, r, "ResumeRun", &approval) {
		return
	}
	if approval.Reason != "" {
		clean, err := runner.SanitizeReason(approval.Reason)
		if err != nil {
			s.writeError(w, "ResumeRun", err)
			return
		}
		approval.Reason = clean
	}
	out, err := s.Engine.Resume(r.Context(), chi.URLParam(r, "runID"), approval)
	if err != nil {
		s.writeError(w, "ResumeRun", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ContinueRun handles POST /runs/{id}/continue.
func (s *Server) ContinueRun(w http.ResponseWriter, r *http.Request) {
	var body ContinueRequest
	if !s.decode(w, r, "ContinueRun", &body) {
		return
	}
	message, err := runner.SanitizeRequest(body.Message)
	if err != nil {
		s.writeError(w, "ContinueRun", err)
		return
	}
	if message == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	out, err := s.Engine.Continue(r.Context(), chi.URLParam(r, "runID"), message)
	if err != nil {
		s.writeError(w, "ContinueRun", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.Inspect(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, "GetRun", err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// GetTranscript handles GET /runs/{id}/transcript.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.Engine.Transcript(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, "GetTranscript", err)
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

// GetEvents handles GET /runs/{id}/events.
func (s *Server) GetEvents(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "event journal is disabled"})
		return
	}
	events := s.Journal.Events(chi.URLParam(r, "runID"))
	if events == nil {
		events = []observability.Entry{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		s.writeError(w, "ListRuns", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// DeleteRun handles DELETE /runs/{id}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "runID")); err != nil {
		s.writeError(w, "DeleteRun", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /graph. ?format=mermaid returns the flowchart text.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Graph()
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, graph.GenerateMermaid(g, nil))
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "concierge-http",
		"version": strings.TrimSpace(s.Version),
	})
}

// SubscribeRun handles GET /runs/{id}/stream (SSE). Every checkpoint of the
// run is pushed as a state diff; ?watch=status,history,entities filters them.
func (s *Server) SubscribeRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeRun: Streaming not supported")
		return
	}

	runID := chi.URLParam(r, "runID")
	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.Logger.Info("SSE: Subscribing to run updates", "run_id", runID)
	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "run_id", runID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !matches(diff, watchList) {
				continue
			}
			data, err := json.Marshal(diff)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func matches(diff *domain.StateDiff, watchList []string) bool {
	if len(watchList) == 0 {
		return true
	}
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "status":
			if diff.Status != nil {
				return true
			}
		case "history":
			if len(diff.Appended) > 0 {
				return true
			}
		case "entities":
			if len(diff.Entities) > 0 {
				return true
			}
		case "context":
			if diff.ActiveContext != nil || diff.NextNode != nil {
				return true
			}
		}
	}
	return false
}
