package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for history operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new history handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers history routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.DELETE("", h.Clear)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

// List returns paginated history entries.
// GET /api/v1/history
func (h *Handlers) List(c echo.Context) error {
	opts := ListOptions{
		Game:     c.QueryParam("game"),
		Status:   c.QueryParam("status"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", defaultPageSize),
	}
	if opts.Status != "" && !Status(opts.Status).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status filter")
	}

	result, err := h.service.List(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Get returns one search with its platform results.
// GET /api/v1/history/:id
func (h *Handlers) Get(c echo.Context) error {
	entry, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// Delete removes one search.
// DELETE /api/v1/history/:id
func (h *Handlers) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear deletes all history entries.
// DELETE /api/v1/history
func (h *Handlers) Clear(c echo.Context) error {
	if err := h.service.DeleteAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c echo.Context, name string, fallback int) int {
	if raw := c.QueryParam(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
