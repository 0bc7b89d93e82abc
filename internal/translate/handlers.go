package translate

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes translation to relay clients.
type Handlers struct {
	client *Client
}

// NewHandlers creates translation handlers.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// RegisterRoutes registers translation routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Translate)
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type translateResponse struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Translate translates the posted text.
// POST /api/v1/translate
func (h *Handlers) Translate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	target := req.Target
	if target == "" {
		target = h.client.TargetLanguage()
	}

	text, err := h.client.Translate(c.Request().Context(), req.Text, target)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotConfigured):
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, ErrEmptyText), errors.Is(err, ErrTextTooLong):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRateLimited):
			return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
	}
	return c.JSON(http.StatusOK, translateResponse{Text: text, Target: target})
}
