package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/xaenox/support-bot/internal/analytics"
	"github.com/xaenox/support-bot/internal/chat"
	"go.uber.org/zap"
)

// Server is the read-only admin HTTP API: dashboard numbers, the
// manager list and the Excel report, for wiring into an external
// dashboard. It never mutates chat state.
type Server struct {
	svc      *chat.Service
	reporter *analytics.Reporter
	logger   *zap.Logger
	http     *http.Server
}

func NewServer(addr string, svc *chat.Service, reporter *analytics.Reporter, logger *zap.Logger) *Server {
	s := &Server{
		svc:      svc,
		reporter: reporter,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/stats", s.handleStats)
	r.Get("/api/managers", s.handleManagers)
	r.Get("/api/report.xlsx", s.handleReport)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("Admin API listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reporter.Dashboard(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleManagers(w http.ResponseWriter, r *http.Request) {
	managers, err := s.svc.Managers(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load managers")
		return
	}
	s.respondJSON(w, http.StatusOK, managers)
}

// handleReport streams the 30-day workbook without touching disk.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	f, err := s.reporter.ExcelReport(r.Context(), 30)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="manager-report.xlsx"`)
	if err := f.Write(w); err != nil {
		s.logger.Error("Failed to stream excel report", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
