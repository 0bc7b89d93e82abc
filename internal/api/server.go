// Package api is the relay server: a REST surface over search sessions,
// history and metadata lookups, plus the WebSocket event hub.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/searchgal/searchgal/internal/api/ratelimit"
	"github.com/searchgal/searchgal/internal/config"
	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/logger"
	"github.com/searchgal/searchgal/internal/progress"
	"github.com/searchgal/searchgal/internal/scheduler"
	"github.com/searchgal/searchgal/internal/session"
	"github.com/searchgal/searchgal/internal/translate"
	"github.com/searchgal/searchgal/internal/vndb"
	"github.com/searchgal/searchgal/internal/websocket"
)

const limiterCleanupInterval = time.Minute

// Services are the components the server exposes. Only Sessions is
// required; routes for nil services are not registered.
type Services struct {
	Sessions  *session.Service
	History   *history.Service
	Progress  *progress.Manager
	VNDB      *vndb.Client
	Translate *translate.Client
	Scheduler *scheduler.Scheduler
	Hub       *websocket.Hub
	Logs      *logger.Logger
}

// Server handles HTTP requests for the relay API.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	logger    zerolog.Logger
	startTime time.Time

	sessions  *session.Service
	history   *history.Service
	progress  *progress.Manager
	vndb      *vndb.Client
	translate *translate.Client
	scheduler *scheduler.Scheduler
	hub       *websocket.Hub
	logs      *logger.Logger
	limiter   *ratelimit.IPLimiter

	stopCleanup context.CancelFunc
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, svc Services, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
		sessions:  svc.Sessions,
		history:   svc.History,
		progress:  svc.Progress,
		vndb:      svc.VNDB,
		translate: svc.Translate,
		scheduler: svc.Scheduler,
		hub:       svc.Hub,
		logs:      svc.Logs,
		limiter:   ratelimit.NewIPLimiter(cfg.Server.SearchesPerMinute),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Str("requestId", v.RequestID).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Str("requestId", v.RequestID).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	s.limiter.StartCleanup(ctx, limiterCleanupInterval)

	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
