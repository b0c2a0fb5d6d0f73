package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"spacebook/internal/config"
	"spacebook/internal/domain"
	"spacebook/internal/models"

	"github.com/rs/zerolog"
)

// Exporter renders reservations as a spreadsheet.
type Exporter interface {
	Write(ctx context.Context, w io.Writer, filter models.ReservationFilter) (int, error)
}

// HTTPServer exposes the reservation engine over JSON/HTTP.
type HTTPServer struct {
	cfg      config.APIConfig
	service  domain.ReservationService
	exporter Exporter
	auth     *HTTPAuth
	handler  http.Handler
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	service domain.ReservationService,
	users domain.UserDirectory,
	exporter Exporter,
	logger *zerolog.Logger,
) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		service:  service,
		exporter: exporter,
		auth:     NewHTTPAuth(cfg, users),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("POST /api/v1/reservations", srv.auth.RequireActor(srv.handleCreate))
	mux.HandleFunc("GET /api/v1/reservations", srv.auth.RequireActor(srv.handleList))
	mux.HandleFunc("GET /api/v1/reservations/export", srv.auth.RequireActor(srv.handleExport))
	mux.HandleFunc("GET /api/v1/reservations/{id}", srv.auth.RequireActor(srv.handleGet))
	mux.HandleFunc("PUT /api/v1/reservations/{id}/status", srv.auth.RequireActor(srv.handleSetStatus))
	mux.HandleFunc("GET /api/v1/conflicts", srv.auth.RequireActor(srv.handleConflicts))
	mux.HandleFunc("GET /api/v1/dashboard/stats", srv.auth.RequireActor(srv.handleStats))
	mux.HandleFunc("GET /api/v1/dashboard/reservations/today", srv.auth.RequireActor(srv.handleToday))

	srv.handler = requestIDMiddleware(loggingMiddleware(logger, srv.auth.Wrap(mux)))
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       parseDuration(cfg.HTTP.ReadTimeout, 10*time.Second),
		WriteTimeout:      parseDuration(cfg.HTTP.WriteTimeout, 30*time.Second),
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, statusCode int, message, reason string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Reason: reason})
}
