package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
	mw "github.com/Demr1on/batmap-app/internal/api/middleware"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/observability"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

// Scheduler is the part of jobqueue.Scheduler the API depends on.
type Scheduler interface {
	Submit(payload any) (string, error)
	Query(id string) (jobqueue.Snapshot, error)
	Stats() jobqueue.Stats
}

// Server is the HTTP server for the classification job API.
type Server struct {
	echo      *echo.Echo
	config    *Config
	scheduler Scheduler
	ready     func() bool
	metrics   *observability.Metrics
	limiter   *mw.RateLimiter
	log       logger.Logger
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics exposes m on /metrics and records request metrics on it.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithReadiness reports model readiness on /health.
func WithReadiness(ready func() bool) ServerOption {
	return func(s *Server) { s.ready = ready }
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New creates a server that submits jobs to scheduler.
func New(config *Config, scheduler Scheduler, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if scheduler == nil {
		return nil, fmt.Errorf("server requires a scheduler")
	}

	s := &Server{
		config:    config,
		scheduler: scheduler,
		log:       GetLogger(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.limiter = mw.NewRateLimiter(config.RateLimit, config.Burst, s.httpMetrics())

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized", logger.String("config", config.String()))
	return s, nil
}

func (s *Server) httpMetrics() *metrics.HTTPMetrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.HTTP
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, s.httpMetrics(), func(c echo.Context) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	}))

	security := mw.DefaultSecurityConfig()
	security.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewSecureHeaders(security))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/classify", s.SubmitClassification, s.limiter.Middleware(s.rateLimited))
	v1.GET("/classify", s.GetClassification)
	v1.GET("/classify/:id", s.GetClassification)
	v1.GET("/queue/stats", s.QueueStats)
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	modelReady := s.ready == nil || s.ready()

	status := "healthy"
	if !modelReady {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":         status,
		"model_ready":    modelReady,
		"queue_running":  s.scheduler.Stats().Running,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// httpErrorHandler renders errors raised by Echo itself (unknown routes,
// oversized bodies, panics caught by Recover) as ErrorResponse.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if herr := s.HandleError(c, err, message, code); herr != nil {
		s.log.Error("failed to write error response", logger.Error(herr))
	}
}

func (s *Server) rateLimited(c echo.Context) error {
	return s.HandleError(c, nil, "Too many classification requests, please wait before trying again", http.StatusTooManyRequests)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("Error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("Server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
