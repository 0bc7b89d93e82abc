package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/searchgal/searchgal/internal/api/handlers"
	apimw "github.com/searchgal/searchgal/internal/api/middleware"
	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/session"
	"github.com/searchgal/searchgal/internal/translate"
	"github.com/searchgal/searchgal/internal/vndb"
)

// CancelMessageType is the WebSocket command that cancels a search.
const CancelMessageType = "search:cancel"

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(apimw.SecurityHeaders("/api"))

	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	sessionHandlers := session.NewHandlers(s.sessions)
	searchGroup := api.Group("/search", s.limiter.Middleware(func(c echo.Context) bool {
		return c.Request().Method != http.MethodPost
	}))
	sessionHandlers.RegisterRoutes(searchGroup)

	if s.history != nil {
		history.NewHandlers(s.history).RegisterRoutes(api.Group("/history"))
	}

	if s.progress != nil {
		api.GET("/activities", s.getActivities)
	}

	if s.vndb != nil {
		vndb.NewHandlers(s.vndb).RegisterRoutes(api.Group("/vndb"))
	}

	if s.translate != nil {
		translate.NewHandlers(s.translate).RegisterRoutes(api.Group("/translate"))
	}

	if s.scheduler != nil {
		handlers.NewSchedulerHandler(s.scheduler).RegisterRoutes(api.Group("/scheduler"))
	}

	if s.logs != nil {
		NewLogsHandlers(s.logs.Recent(), s.logs.FilePath()).RegisterRoutes(api.Group("/logs"))
	}

	if s.hub != nil {
		s.hub.Handle(CancelMessageType, sessionHandlers.CancelMessage)
		s.echo.GET("/ws", s.hub.HandleWebSocket)
	}
}
