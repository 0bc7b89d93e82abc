package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for relay searches.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new session handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers search routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Start)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel)
}

// Start launches a search and returns its session immediately.
// POST /api/v1/search
func (h *Handlers) Start(c echo.Context) error {
	var input StartInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Start(c.Request().Context(), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, session)
}

// List returns running and recently finished searches.
// GET /api/v1/search
func (h *Handlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.List())
}

// Get returns one search session.
// GET /api/v1/search/:id
func (h *Handlers) Get(c echo.Context) error {
	session, err := h.service.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, session)
}

// Cancel aborts a running search.
// DELETE /api/v1/search/:id
func (h *Handlers) Cancel(c echo.Context) error {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelMessage handles a "search:cancel" WebSocket command.
func (h *Handlers) CancelMessage(payload json.RawMessage) error {
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ErrInvalidInput
	}
	return h.service.Cancel(msg.ID)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
