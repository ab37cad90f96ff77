// Package http exposes the imagery pipeline over a JSON API, plus health,
// readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floodwatch/imagery-pipeline/internal/adapter/storage"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
	"github.com/floodwatch/imagery-pipeline/internal/pipeline"
)

// PipelineAPI is the pipeline surface the server fronts. Tests substitute
// fakes.
type PipelineAPI interface {
	Acquire(ctx context.Context, req pipeline.AcquireRequest) (pipeline.AcquireResult, error)
	Preprocess(ctx context.Context, req pipeline.PreprocessRequest) (pipeline.PreprocessResult, error)
	Extract(ctx context.Context, req pipeline.ExtractRequest) (domain.PolygonCollection, error)
	Analyze(ctx context.Context, req pipeline.AnalyzeRequest) (domain.AnalysisResult, error)
	CheckReadiness(ctx context.Context) error
}

// Server routes pipeline, artifact, and operational endpoints.
type Server struct {
	httpServer *http.Server
	api        PipelineAPI
	store      storage.Store
	logger     *slog.Logger
}

func NewServer(addr string, api PipelineAPI, store storage.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second, // analyze can wait on provider fetches
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		store:  store,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/acquire", s.handleAcquire)
	mux.HandleFunc("POST /api/v1/preprocess", s.handlePreprocess)
	mux.HandleFunc("POST /api/v1/extract", s.handleExtract)
	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)

	mux.HandleFunc("GET /api/v1/artifacts", s.handleListArtifacts)
	mux.HandleFunc("POST /api/v1/artifacts", s.handleUploadArtifact)
	mux.HandleFunc("GET /api/v1/artifacts/{name}", s.handleGetArtifact)
	mux.HandleFunc("DELETE /api/v1/artifacts/{name}", s.handleDeleteArtifact)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.api.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
