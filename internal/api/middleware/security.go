// Package middleware holds Echo middleware shared by the relay routes.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets browser hardening headers on every response and
// disables caching for paths under noCachePrefix.
func SecurityHeaders(noCachePrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "frame-ancestors 'self'")

			// Search sessions change every few hundred milliseconds.
			if noCachePrefix != "" && strings.HasPrefix(c.Request().URL.Path, noCachePrefix) {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}
