package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/searchgal/searchgal/internal/config"
)

type statusResponse struct {
	Version        string   `json:"version"`
	StartTime      string   `json:"startTime"`
	Uptime         string   `json:"uptime"`
	APIBaseURL     string   `json:"apiBaseUrl"`
	DefaultMode    string   `json:"defaultMode"`
	ActiveSearches int      `json:"activeSearches"`
	Activities     int      `json:"activities"`
	WSClients      int      `json:"wsClients"`
	Features       []string `json:"features"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports the relay's version and load.
// GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	resp := statusResponse{
		Version:     config.Version,
		StartTime:   s.startTime.Format(time.RFC3339),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		APIBaseURL:  s.cfg.API.BaseURL,
		DefaultMode: s.cfg.API.Mode,
		Features:    s.features(),
	}
	if s.sessions != nil {
		resp.ActiveSearches = s.sessions.Active()
	}
	if s.progress != nil {
		resp.Activities = len(s.progress.GetAllActivities())
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// getActivities lists in-flight and lingering activities.
// GET /api/v1/activities
func (s *Server) getActivities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progress.GetAllActivities())
}

func (s *Server) features() []string {
	features := []string{"search"}
	if s.history != nil {
		features = append(features, "history")
	}
	if s.vndb != nil {
		features = append(features, "vndb")
	}
	if s.translate != nil && s.translate.IsConfigured() {
		features = append(features, "translate")
	}
	if s.scheduler != nil {
		features = append(features, "scheduler")
	}
	return features
}
