// Package api exposes the answering system over HTTP.
//
// Endpoints:
//
//	POST /api/query               answer a question within a session
//	GET  /api/courses             corpus analytics
//	POST /api/sessions            start a new session
//	POST /api/sessions/{id}/clear reset a session's history
//	GET  /api/visualization-data  instructor/course/lesson graph
//	GET  /health                  liveness probe
//	GET  /ready                   readiness probe (pings the database)
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyowl/studyowl/internal/course"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/rag"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8000"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout = 30 * time.Second
	// WriteTimeout is generous because answers wait on model generation.
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// QueryService is the slice of the answering system the API depends on.
type QueryService interface {
	Query(ctx context.Context, question, sessionID string) (*rag.Answer, error)
	NewSession() string
	ClearSession(id string)
	GetAnalytics(ctx context.Context) (rag.Analytics, error)
	Courses(ctx context.Context) ([]course.Course, error)
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux         *http.ServeMux
	logger      log.Logger
	corsOrigins []string
}

// NewServer creates a server with all routes registered. pool may be nil;
// the readiness probe then reports unavailable.
func NewServer(system QueryService, pool *pgxpool.Pool, corsOrigins []string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: logger, corsOrigins: corsOrigins}

	NewHealthHandler(pool, logger).RegisterRoutes(mux)
	NewQueryHandler(system, logger).RegisterRoutes(mux)
	NewCoursesHandler(system, logger).RegisterRoutes(mux)
	NewSessionHandler(system).RegisterRoutes(mux)
	NewVisualizationHandler(system, logger).RegisterRoutes(mux)

	return s
}

// Handler returns the handler with middleware applied, outermost first:
// recovery, then logging, then CORS.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware, s.corsMiddleware)
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
