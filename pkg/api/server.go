// Package api serves the points ledger over HTTP with echo
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-ledger/internal/config"
	"github.com/jakechorley/volunteer-ledger/pkg/audit"
	"github.com/jakechorley/volunteer-ledger/pkg/core/services"
	"github.com/jakechorley/volunteer-ledger/pkg/db"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		JWTSecret      []byte
		Database       db.Database
		Auditor        services.Auditor
		Notifier       services.ReviewNotifier // optional
		Completion     config.CompletionConfig
		Logger         *zap.Logger
		Registry       *prometheus.Registry // a fresh registry is used when nil
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		app     *echo.Echo
		metrics *Metrics
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Auditor == nil {
		opts.Auditor = services.NoopAuditor{}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	s := &server{
		opts:    opts,
		app:     echo.New(),
		metrics: NewMetrics(opts.Registry),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Validator = newRequestValidator()
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.opts.Logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(requestLogger(s.opts.Logger))
	}
	s.app.Use(middleware.Recover())
	s.app.Use(s.metrics.middleware())

	s.app.GET("/healthz", healthz)
	s.app.GET("/metrics", metricsHandler(s.opts.Registry))

	auth := authMiddleware(s.opts.JWTSecret)
	admin := requireRole(RoleAdmin, RoleStaff)

	h := &handlers{
		db:         s.opts.Database,
		auditor:    s.opts.Auditor,
		notifier:   s.opts.Notifier,
		completion: s.opts.Completion,
		logger:     s.opts.Logger,
		metrics:    s.metrics,
	}

	registerVolunteerAPI(s.app.Group("/volunteers", auth), admin, h)
	registerEventAPI(s.app.Group("/events", auth), admin, h)
}

func (s *server) Start() error {
	s.opts.Logger.Info("Starting HTTP server", zap.String("address", s.opts.Address))
	if err := s.app.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// the error handler has not written the response yet
			status := v.Status
			if v.Error != nil {
				status, _ = errorResponse(v.Error)
			}
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("HTTP request", fields...)
			return nil
		},
	})
}

// handlers holds the dependencies shared by every route
type handlers struct {
	db         db.Database
	auditor    services.Auditor
	notifier   services.ReviewNotifier
	completion config.CompletionConfig
	logger     *zap.Logger
	metrics    *Metrics
}

// requestContext carries the client address through to audit entries
func requestContext(c echo.Context) context.Context {
	return audit.WithIPAddress(c.Request().Context(), c.RealIP())
}
