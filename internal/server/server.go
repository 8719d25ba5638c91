// Package server provides the HTTP API for the book chatbot
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/internal/rag"
	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Server is the HTTP API server
type Server struct {
	svc     rag.Service
	config  Config
	server  *http.Server
	metrics *metrics
}

// Config configures the server
type Config struct {
	Host string
	Port int

	// EnableIndex exposes POST /index. Off by default since the API is
	// reachable from browsers and indexing writes to the shared collection.
	EnableIndex bool
}

type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookrag",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookrag",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.requests, m.duration)
	return m
}

// New creates a new server
func New(svc rag.Service, cfg Config) *Server {
	s := &Server{
		svc:     svc,
		config:  cfg,
		metrics: newMetrics(),
	}
	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // indexing a whole book is slow
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/embed", s.instrument("/embed", s.handleEmbed))
	mux.Handle("/search", s.instrument("/search", s.handleSearch))
	mux.Handle("/index", s.instrument("/index", s.handleIndex))
	mux.Handle("/stats", s.instrument("/stats", s.handleStats))
	mux.Handle("/health", s.instrument("/health", s.handleHealth))
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	// CORS for the docs site chatbot widget
	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	slog.Info("server: listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		slog.Debug("server: request", "method", r.Method, "route", route, "status", rec.status, "duration", time.Since(start))
	})
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleEmbed handles POST /embed
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.EmbedRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.svc.Embed(r.Context(), req.Text)
	if err != nil {
		slog.Error("server: embed failed", "error", err)
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// handleSearch handles POST /search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.SearchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.svc.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, rag.ErrQueryRequired) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("server: search failed", "error", err)
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, resp, http.StatusOK)
}

// handleIndex handles POST /index
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !s.config.EnableIndex {
		writeError(w, "Indexing over HTTP is disabled", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.IndexRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	count, err := s.svc.Index(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrPathRequired), errors.Is(err, rag.ErrUnsupportedFile):
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, rag.ErrPathOutsideRoot):
			writeError(w, err.Error(), http.StatusForbidden)
			return
		}
		slog.Error("server: index failed", "path", req.Path, "error", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]int{"indexed": count}, http.StatusOK)
}

// handleStats handles GET /stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, stats, http.StatusOK)
}

// handleHealth handles GET /health. The vector database is checked with ?deep=1.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") != "" {
		if err := s.svc.Health(r.Context()); err != nil {
			writeJSON(w, map[string]string{"status": "degraded", "error": err.Error()}, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok", "version": Version}, http.StatusOK)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("server: failed to write response", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, map[string]string{"error": message}, status)
}
