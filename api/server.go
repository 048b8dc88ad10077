package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server exposes the tool registry over HTTP.
type Server struct {
	registry *Registry
	router   *mux.Router
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
	server   *http.Server
}

// ServerOptions configures the HTTP surface.
type ServerOptions struct {
	Host              string
	Port              int
	RequestsPerSecond int
	Burst             int
}

// NewServer builds the HTTP server around a populated registry.
func NewServer(registry *Registry, opts ServerOptions, logger *zap.SugaredLogger) *Server {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 50
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = rps * 2
	}

	s := &Server{
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		logger:   logger,
	}

	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	tools := r.PathPrefix("/tools").Subrouter()
	tools.Use(s.rateLimitMiddleware)
	tools.HandleFunc("", s.handleListTools).Methods(http.MethodGet)
	tools.HandleFunc("/{name}", s.handleCallTool).Methods(http.MethodPost)

	s.router = r
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Infow("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Debugw("failed to write health response", "error", err.Error())
	}
}

// toolSummary is the listing shape for GET /tools.
type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.registry.List()
	summaries := make([]toolSummary, 0, len(tools))
	for _, t := range tools {
		summaries = append(summaries, toolSummary{
			Name:        t.Name,
			Description: t.Description,
			Schema:      json.RawMessage(t.Schema),
		})
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]interface{}{"tools": summaries})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var args json.RawMessage
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && err.Error() != "EOF" {
			http.Error(w, "request body must be a JSON object", http.StatusBadRequest)
			return
		}
	}

	response := s.registry.Call(r.Context(), name, args)
	status := http.StatusOK
	if response.IsError {
		// Tool-level failures still produce a well-formed envelope; the
		// transport status just mirrors isError for plain HTTP callers.
		status = http.StatusBadRequest
	}
	writeJSON(w, s.logger, status, response)
}

func writeJSON(w http.ResponseWriter, logger *zap.SugaredLogger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debugw("failed to encode response", "error", err.Error())
	}
}
