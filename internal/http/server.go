// Package http serves the signal pipeline over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/signald/internal/adapters/whatsapp"
	"github.com/fyrsmithlabs/signald/internal/aggregate"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

// maxWebhookBody bounds webhook payloads.
const maxWebhookBody = "1M"

// Server provides HTTP endpoints for signald.
type Server struct {
	echo    *echo.Echo
	manager *aggregate.Manager
	inbox   whatsapp.Inbox
	logger  *logging.Logger
	config  *Config
	now     func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// VerifyToken answers the WhatsApp webhook subscription challenge.
	VerifyToken config.Secret
	// AppSecret enables webhook signature checks when set.
	AppSecret config.Secret

	// Registerer receives the HTTP collectors. Nil selects the default
	// registry.
	Registerer prometheus.Registerer
	// Gatherer backs /metrics. Nil selects the default gatherer.
	Gatherer prometheus.Gatherer
}

// NewServer creates a new HTTP server over manager.
//
// The WhatsApp webhook routes are mounted only when the manager has a
// WhatsApp adapter.
func NewServer(manager *aggregate.Manager, logger *logging.Logger, cfg *Config) (*Server, error) {
	if manager == nil {
		return nil, errors.New("manager cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})
	e.Use(NewHTTPMetrics(cfg.Registerer, logger.Underlying()).MetricsMiddleware())

	s := &Server{
		echo:    e,
		manager: manager,
		logger:  logger,
		config:  cfg,
		now:     time.Now,
	}
	if a, ok := manager.Adapter(signal.SourceWhatsApp); ok {
		if wa, ok := a.(interface{ Inbox() whatsapp.Inbox }); ok {
			s.inbox = wa.Inbox()
		}
	}

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/signals", s.handleSignals)
	v1.GET("/integrations/health", s.handleIntegrations)
	v1.GET("/coverage", s.handleCoverage)

	if s.inbox != nil {
		wh := s.echo.Group("/webhooks/whatsapp", middleware.BodyLimit(maxWebhookBody))
		wh.GET("", s.handleWebhookVerify)
		wh.POST("", s.handleWebhookDeliver)
	}
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
