// Package api exposes the read side of the analysis store plus an
// on-demand analysis trigger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nad-devs/Logger/internal/pipeline"
	"github.com/nad-devs/Logger/internal/store"
)

// ResultReader is the slice of the store the API reads from.
type ResultReader interface {
	GetAnalysisResults(ctx context.Context, conversationID string) ([]store.AnalysisResult, error)
}

// Analyzer runs or previews a full analysis for one conversation.
type Analyzer interface {
	Analyze(ctx context.Context, conversationID string) (*pipeline.Report, error)
	Run(ctx context.Context, conversationID string) (*pipeline.Report, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	results  ResultReader
	analyzer Analyzer
	logger   *slog.Logger
}

func NewServer(port int, results ResultReader, analyzer Analyzer, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(120 * time.Second))

	s := &Server{
		router:   router,
		port:     port,
		results:  results,
		analyzer: analyzer,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/logger/status", s.status)
	router.Get("/api/v1/conversations/{id}/scores", s.scores)
	router.Get("/api/v1/conversations/{id}/profile", s.profile)
	router.Post("/api/v1/conversations/{id}/analyze", s.analyze)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "logger",
		"status":  "running",
	})
}

// scores returns the persisted per-analyzer rows for a conversation.
func (s *Server) scores(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := s.results.GetAnalysisResults(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load analysis results", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no analysis results for conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"results":         results,
	})
}

// profile computes a fresh report without persisting it, so the endpoint
// is safe to call on conversations still in progress.
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.analyzer.Analyze(r.Context(), id)
	if err != nil {
		s.logger.Error("profile computation failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	if report.Assessment.Level == "insufficient_data" {
		writeError(w, http.StatusNotFound, "not enough activity to assess")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// analyze runs the full pipeline for one conversation and persists the
// outcome.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.analyzer.Run(r.Context(), id)
	if err != nil {
		s.logger.Error("requested analysis failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"overall_score":   report.Scores.Overall,
		"assessment":      report.Assessment,
		"analyzed_at":     report.AnalyzedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
