// Package server exposes ragmesh over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hupe1980/ragmesh"
	"github.com/hupe1980/ragmesh/core"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/retrieval"
	"github.com/hupe1980/ragmesh/runner"
)

// Runner executes and cancels runs. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context, runID, question string) (string, *ragmesh.Answer, error)
	Cancel(runID string) error
}

// Options configure the handler.
type Options struct {
	// Ingester backs POST /v1/documents. Nil disables the route.
	Ingester ragmesh.Ingester
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	// MaxBodyBytes bounds request bodies (default 1 MiB).
	MaxBodyBytes int64
	Logger       logging.Logger
}

// Server holds the handler dependencies.
type Server struct {
	runner Runner
	opts   Options
	logger logging.Logger
}

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	Question string `json:"question"`
	RunID    string `json:"run_id,omitempty"`
}

// RunResponse is returned for a completed run.
type RunResponse struct {
	RunID  string   `json:"run_id"`
	Answer string   `json:"answer"`
	Steps  int      `json:"steps"`
	Path   []string `json:"path,omitempty"`
}

// DocumentResponse is returned for an ingested document.
type DocumentResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	RunID string `json:"run_id,omitempty"`
}

// NewHandler creates the HTTP handler.
func NewHandler(r Runner, optFns ...func(o *Options)) http.Handler {
	opts := Options{MaxBodyBytes: 1 << 20}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{runner: r, opts: opts, logger: logging.OrNoOp(opts.Logger)}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/healthz", s.health)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	mux.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.createRun)
		r.Delete("/runs/{runID}", s.cancelRun)
		if opts.Ingester != nil {
			r.Post("/documents", s.ingest)
		}
	})

	return mux
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if !s.decode(w, r, &body) {
		return
	}

	runID, answer, err := s.runner.Run(r.Context(), body.RunID, body.Question)
	if err != nil {
		status, code := classify(err)
		s.logger.Warn("server.run.failed", "run_id", runID, "status", status, "error", err.Error())
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, RunID: runID})
		return
	}

	path := make([]string, len(answer.Path))
	for i, id := range answer.Path {
		path[i] = string(id)
	}

	writeJSON(w, http.StatusOK, RunResponse{
		RunID:  runID,
		Answer: answer.Answer,
		Steps:  answer.Steps,
		Path:   path,
	})
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.runner.Cancel(runID); err != nil {
		status, code := classify(err)
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, RunID: runID})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	var doc retrieval.Document
	if !s.decode(w, r, &doc) {
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	n, err := s.opts.Ingester.Ingest(r.Context(), doc)
	if err != nil {
		status, code := classify(err)
		s.logger.Warn("server.ingest.failed", "document_id", doc.ID, "error", err.Error())
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	writeJSON(w, http.StatusCreated, DocumentResponse{DocumentID: doc.ID, Chunks: n})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{Error: "content type must be application/json", Code: "unsupported_media_type"})
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "invalid_request"})
		return false
	}

	return true
}

// classify maps an error to an HTTP status and a stable error code.
// statusClientClosedRequest reports a run cancelled before it finished.
const statusClientClosedRequest = 499

func classify(err error) (int, string) {
	var (
		inputErr   *core.InputError
		limitErr   *core.RecursionLimitError
		timeoutErr *core.TimeoutError
		modelErr   *core.ModelInvocationError
		toolErr    *core.ToolExecutionError
		unknownErr *core.UnknownToolError
		routingErr *core.RoutingError
	)

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, runner.ErrTooManyRuns):
		return http.StatusTooManyRequests, "too_many_runs"
	case errors.Is(err, runner.ErrDuplicateRun):
		return http.StatusConflict, "duplicate_run"
	case errors.Is(err, runner.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found"
	case errors.Is(err, ragmesh.ErrIngestUnsupported):
		return http.StatusNotImplemented, "ingest_unsupported"
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity, "recursion_limit"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "cancelled"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &modelErr):
		return http.StatusBadGateway, "model_error"
	case errors.As(err, &unknownErr):
		return http.StatusBadGateway, "unknown_tool"
	case errors.As(err, &toolErr):
		return http.StatusBadGateway, "tool_error"
	case errors.As(err, &routingErr):
		return http.StatusInternalServerError, "routing_error"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
