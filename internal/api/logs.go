package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/searchgal/searchgal/internal/logger"
)

// LogsProvider provides access to buffered log entries.
type LogsProvider interface {
	Filter(level string, limit int) []logger.LogEntry
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
	filePath string
}

// NewLogsHandlers creates a new logs handlers instance. filePath may be
// empty when file logging is off.
func NewLogsHandlers(provider LogsProvider, filePath string) *LogsHandlers {
	return &LogsHandlers{provider: provider, filePath: filePath}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries from the ring buffer.
// GET /api/v1/logs?level=&limit=
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	level := c.QueryParam("level")
	if level == "" {
		level = "trace"
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	logs := h.provider.Filter(level, limit)
	if logs == nil {
		logs = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
// GET /api/v1/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	if h.filePath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(h.filePath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(h.filePath, "searchgal.log")
}
