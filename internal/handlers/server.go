// Package handlers serves the health and metrics endpoints of long-running
// commands.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fbadmin/internal/admin"
)

// Server represents the HTTP server
type Server struct {
	mu         sync.Mutex
	httpServer *http.Server
	config     admin.ServerConfig
	metrics    admin.MetricsConfig
	handlers   *Handlers
	gatherer   prometheus.Gatherer
	logger     admin.Logger
}

// NewServer creates a new HTTP server. gatherer may be nil when metrics are
// disabled.
func NewServer(config admin.ServerConfig, metrics admin.MetricsConfig, handlers *Handlers, gatherer prometheus.Gatherer, logger admin.Logger) *Server {
	return &Server{
		config:   config,
		metrics:  metrics,
		handlers: handlers,
		gatherer: gatherer,
		logger:   logger.With("component", "server"),
	}
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRecovery, s.withSecurityHeaders, s.withLogging)

	r.HandleFunc("/health", s.handlers.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handlers.ReadinessHandler).Methods(http.MethodGet)

	if s.metrics.Enabled && s.gatherer != nil {
		path := s.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// Start serves until Stop is called
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "address", addr)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if httpServer := s.current(); httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("graceful shutdown failed, forcing close", "error", err)
			if closeErr := httpServer.Close(); closeErr != nil {
				s.logger.Error("force close failed", "error", closeErr)
				return closeErr
			}
			return err
		}
		s.logger.Info("HTTP server stopped successfully")
	}

	return nil
}

func (s *Server) current() *http.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpServer
}

// withLogging adds request logging middleware
func (s *Server) withLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		handler.ServeHTTP(wrapper, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr)
	})
}

// withRecovery turns a panicking handler into a 500 and logs the panic
func (s *Server) withRecovery(handler http.Handler) http.Handler {
	return gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{logger: s.logger}),
	)(handler)
}

type recoveryLogger struct {
	logger admin.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic serving request", "panic", fmt.Sprint(v...))
}

// withSecurityHeaders adds security headers
func (s *Server) withSecurityHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

		handler.ServeHTTP(w, r)
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
