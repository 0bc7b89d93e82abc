package vndb

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handlers exposes VNDB lookups to relay clients.
type Handlers struct {
	client *Client
}

// NewHandlers creates VNDB handlers.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// RegisterRoutes registers VNDB routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.Search)
}

// Search returns visual novels matching q.
// GET /api/v1/vndb/search?q=&limit=
func (h *Handlers) Search(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	results, err := h.client.Search(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyQuery):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRateLimited):
			return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
	}
	return c.JSON(http.StatusOK, results)
}
