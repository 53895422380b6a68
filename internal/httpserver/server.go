// Package httpserver is the service's local-only, read-only ops surface:
// /metrics (Prometheus), /health, /status, /stats, matching the teacher's
// internal/interfaces/http server but trimmed to this service's own
// endpoints and moved onto gorilla/mux's middleware chain.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config tunes the server's bind address and timeouts.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig matches the teacher's local-only, conservative timeouts.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StatusProvider supplies the live data /status and /stats render. A
// concrete implementation lives in internal/core, which is the only
// component that knows about every running subsystem.
type StatusProvider interface {
	Status(ctx context.Context) (StatusReport, error)
	Stats(ctx context.Context) (StatsReport, error)
}

// StatusReport is /status's response body.
type StatusReport struct {
	Uptime         string `json:"uptime"`
	ActiveActors   int    `json:"active_actors"`
	ExchangeHealthy bool  `json:"exchange_healthy"`
}

// StatsReport is /stats's response body.
type StatsReport struct {
	SignalsEmittedToday int     `json:"signals_emitted_today"`
	ClassifierTrained   bool    `json:"classifier_trained"`
	ClassifierSamples   int     `json:"classifier_samples"`
	BudgetWarnings      []string `json:"budget_warnings,omitempty"`
}

// Server is the local read-only HTTP server.
type Server struct {
	router *mux.Router
	srv    *http.Server
	cfg    Config
	status StatusProvider
	log    zerolog.Logger
}

// New wires a Server; call Start to begin listening.
func New(cfg Config, status StatusProvider, log zerolog.Logger) *Server {
	if cfg.Addr == "" {
		cfg = DefaultConfig()
	}
	s := &Server{
		router: mux.NewRouter(),
		cfg:    cfg,
		status: status,
		log:    log.With().Str("component", "httpserver").Logger(),
	}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.log.Debug().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.status.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start binds the listener and serves until Shutdown is called. It
// returns http.ErrServerClosed on a clean shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: bind %s: %w", s.cfg.Addr, err)
	}
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.srv.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
