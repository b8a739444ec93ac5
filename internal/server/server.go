package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ntodo/ntodo/internal/tasks"
	"github.com/ntodo/ntodo/internal/version"
)

const (
	// HTTP server timeouts.
	readHeaderTimeout = 10 * time.Second // Timeout for reading request headers
	shutdownTimeout   = 30 * time.Second // Timeout for graceful shutdown
)

// Config configures the task API server.
type Config struct {
	// Port is the HTTP port to listen on.
	Port int
	// PollInterval is the background refresh period.
	PollInterval time.Duration
}

// Server serves the task API and runs the refresh worker.
type Server struct {
	httpServer *http.Server
	config     *Config
	logger     *slog.Logger
	worker     *Worker
	workerDone chan struct{}
	cancelFunc context.CancelFunc
}

// NewServer creates a task API server around the given service.
func NewServer(cfg *Config, service *tasks.Service, logger *slog.Logger) *Server {
	worker := NewWorker(service, cfg.PollInterval, logger)
	handler := NewHandler(service, worker, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.HandleHealth)
	mux.HandleFunc("GET /api/version", handler.HandleVersion)
	mux.HandleFunc("GET /api/tasks", handler.HandleListTasks)
	mux.HandleFunc("POST /api/tasks", handler.HandleCreateTask)
	mux.HandleFunc("PATCH /api/tasks/{uid}", handler.HandleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks", handler.HandleDeleteTasks)
	mux.HandleFunc("POST /api/refresh", handler.HandleRefresh)

	// Wrap with logging middleware
	loggedHandler := loggingMiddleware(mux, logger)

	return &Server{
		config: cfg,
		logger: logger,
		worker: worker,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           loggedHandler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start starts the HTTP server and the refresh worker. This method blocks
// until the context is canceled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting task server",
		"port", s.config.Port,
		"poll_interval", s.config.PollInterval,
		"version", version.Version,
		"commit", version.Commit,
		"build_time", version.GitTime)

	// Create a cancellable context for the refresh worker
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		s.worker.Start(workerCtx)
	}()

	// Start server in a goroutine so we can handle context cancellation
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "shutting down task server")
		// Detach the shutdown context from the canceled one so shutdown
		// can still complete.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.workerDone != nil {
		s.logger.InfoContext(ctx, "waiting for refresh worker to finish")
		<-s.workerDone
	}

	return s.httpServer.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader captures the status code.
func (w *responseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// loggingMiddleware logs all HTTP requests.
func loggingMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, req)

		logger.Info("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
