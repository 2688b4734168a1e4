// Package server exposes the orchestrator over HTTP: the /route operation,
// the probe endpoints, the Prometheus scrape endpoint, and the controller
// debug view. Error kinds map onto status codes here and nowhere else.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shushunyam/eyeofterror/internal/controller"
	"github.com/shushunyam/eyeofterror/internal/fault"
	"github.com/shushunyam/eyeofterror/internal/health"
	"github.com/shushunyam/eyeofterror/internal/observe"
	"github.com/shushunyam/eyeofterror/internal/orchestrator"
	"github.com/shushunyam/eyeofterror/internal/plan"
)

// maxRequestBody caps an inbound /route payload. Audio arrives base64-encoded
// inline, so the limit is generous.
const maxRequestBody = 32 << 20 // 32 MiB

// Router processes one inbound message end to end.
type Router interface {
	Route(ctx context.Context, req plan.Request) (*orchestrator.Outcome, error)
}

// Debugger reports the controller state for /debug/controller.
type Debugger interface {
	Debug() controller.DebugState
}

// Server wires the HTTP surface. Construct with [New], mount via [Handler].
type Server struct {
	router  Router
	debug   Debugger
	health  *health.Handler
	metrics *observe.Metrics
}

// New builds a Server over the given collaborators.
func New(router Router, debug Debugger, h *health.Handler, m *observe.Metrics) *Server {
	return &Server{router: router, debug: debug, health: h, metrics: m}
}

// Handler returns the fully assembled HTTP handler with the observability
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("GET /debug/controller", s.handleDebugController)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(s.metrics)(mux)
}

// routeResponse is the /route success body.
type routeResponse struct {
	OK        bool           `json:"ok"`
	Artifacts map[string]any `json:"artifacts"`
	Logs      []string       `json:"logs"`
}

// errorResponse is the /route failure body.
type errorResponse struct {
	OK    bool       `json:"ok"`
	Error errorField `json:"error"`
	Logs  []string   `json:"logs"`
}

type errorField struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx).With("request_id", observe.RequestID(ctx))
	start := time.Now()

	s.metrics.ActiveRoutes.Add(ctx, 1)
	defer s.metrics.ActiveRoutes.Add(ctx, -1)
	defer func() {
		s.metrics.RouteDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var req plan.Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(ctx, w, log, nil, fault.Wrap(fault.InvalidInput, err, "decode request body"))
		return
	}

	out, err := s.router.Route(ctx, req)
	if err != nil {
		s.writeError(ctx, w, log, out.Logs, err)
		return
	}

	log.Info("route completed", "artifacts", len(out.Artifacts), "steps", len(out.Logs))
	writeJSON(w, http.StatusOK, routeResponse{OK: true, Artifacts: out.Artifacts, Logs: out.Logs})
}

func (s *Server) handleDebugController(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.debug.Debug())
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, log *slog.Logger, logs []string, err error) {
	kind := string(fault.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	status := fault.HTTPStatusOf(err)
	s.metrics.RecordRouteError(ctx, kind)
	log.Warn("route failed", "kind", kind, "status", status, "error", err)

	if logs == nil {
		logs = []string{}
	}
	writeJSON(w, status, errorResponse{
		Error: errorField{Kind: kind, Message: err.Error()},
		Logs:  logs,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// compile-time interface checks
var (
	_ Router   = (*orchestrator.Orchestrator)(nil)
	_ Debugger = (*controller.Client)(nil)
)
