// Package server provides the HTTP trigger endpoint the orchestration layer
// uses to start pipeline runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/types"
)

// Runner executes one task invocation. *pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// RunReader looks up an agent run. Both stores implement it.
type RunReader interface {
	GetAgentRun(ctx context.Context, runID uuid.UUID) (*types.AgentRun, error)
}

// Config holds server configuration
type Config struct {
	Port int
	// TriggersPerSecond throttles POST /runs; zero disables throttling.
	TriggersPerSecond float64
	// ShutdownTimeout bounds how long Shutdown waits for in-flight runs.
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	runner     Runner
	reader     RunReader
	validate   *validator.Validate
	limiter    *rate.Limiter
	log        *zap.Logger

	shutdownTimeout time.Duration

	// runCtx outlives requests; it is canceled only when shutdown gives up
	// waiting for in-flight runs.
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// New creates a new server instance. reader may be nil, which disables GET /runs/{id}.
func New(cfg Config, runner Runner, reader RunReader, log *zap.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.TriggersPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TriggersPerSecond), max(1, int(cfg.TriggersPerSecond)))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:          runner,
		reader:          reader,
		validate:        validator.New(),
		limiter:         limiter,
		log:             logger.OrNop(log),
		shutdownTimeout: cfg.ShutdownTimeout,
		runCtx:          runCtx,
		cancelRun:       cancel,
		inFlight:        map[uuid.UUID]bool{},
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", s.handleTrigger)
	mux.HandleFunc("GET /runs/{id}", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withLogging(mux)
}

// Start listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("server: shutting down")
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests and waits for in-flight runs. Runs still
// going after the shutdown timeout are canceled, which records them as failed.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("server shutdown failed: %w", err)
	}

	if !s.waitRuns(ctx) {
		s.log.Warn("server: canceling in-flight runs")
		s.cancelRun()
		s.wg.Wait()
	}
	s.cancelRun()

	s.log.Info("server: stopped")
	return err
}

// waitRuns reports whether every run finished before ctx was done.
func (s *Server) waitRuns(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("server: failed to encode response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
