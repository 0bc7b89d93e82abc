// Package mock serves a scripted SearchGal platform API that speaks the
// NDJSON streaming protocol, for development and tests.
package mock

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Options controls how the mock API streams.
type Options struct {
	Platforms []Platform
	// Delay is slept before every platform line.
	Delay time.Duration
	// ChunkSize splits every write into pieces of at most this many bytes,
	// flushing after each, so lines straddle chunk boundaries. 0 writes
	// whole lines.
	ChunkSize int
	// InjectMalformed writes a broken line after the total line.
	InjectMalformed bool
	// OmitDone ends the body without a done event.
	OmitDone bool
	// FailStatus answers every search with this status and FailMessage.
	FailStatus  int
	FailMessage string
}

// Server is the mock platform API.
type Server struct {
	echo   *echo.Echo
	opts   Options
	logger zerolog.Logger
}

// NewServer creates a mock API with /gal and /patch routes.
func NewServer(opts Options, logger zerolog.Logger) *Server {
	if opts.Platforms == nil {
		opts.Platforms = DefaultPlatforms
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		opts:   opts,
		logger: logger.With().Str("component", "mock-api").Logger(),
	}
	e.POST("/gal", s.handleSearch(false))
	e.POST("/patch", s.handleSearch(true))
	return s
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) handleSearch(patch bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		game := c.FormValue("game")
		if game == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "game is required"})
		}
		if s.opts.FailStatus != 0 {
			if s.opts.FailMessage == "" {
				return c.NoContent(s.opts.FailStatus)
			}
			return c.JSON(s.opts.FailStatus, map[string]string{"error": s.opts.FailMessage})
		}

		platforms := PlatformsFor(s.opts.Platforms, patch)
		s.logger.Debug().
			Str("game", game).
			Bool("patch", patch).
			Int("platforms", len(platforms)).
			Msg("streaming mock search")

		resp := c.Response()
		resp.Header().Set(echo.HeaderContentType, "application/x-ndjson; charset=utf-8")
		resp.Header().Set("Cache-Control", "no-cache")
		resp.WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		if err := s.writeLine(resp, map[string]any{"total": len(platforms)}); err != nil {
			return nil
		}
		if s.opts.InjectMalformed {
			if err := s.writeRaw(resp, []byte("{\"progress\": oops\n")); err != nil {
				return nil
			}
		}

		for i, p := range platforms {
			if s.opts.Delay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(s.opts.Delay):
				}
			}

			result := map[string]any{
				"name":  p.Name,
				"color": p.Color,
				"items": p.Items(game),
			}
			if p.Website != "" {
				result["website"] = p.Website
			}
			if len(p.Tags) > 0 {
				result["tags"] = p.Tags
			}
			if p.Error != "" {
				result["error"] = p.Error
			}

			line := map[string]any{
				"progress": map[string]int{"completed": i + 1, "total": len(platforms)},
				"result":   result,
			}
			if err := s.writeLine(resp, line); err != nil {
				return nil
			}
		}

		if !s.opts.OmitDone {
			_ = s.writeLine(resp, map[string]bool{"done": true})
		}
		return nil
	}
}

func (s *Server) writeLine(resp *echo.Response, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.writeRaw(resp, append(data, '\n'))
}

func (s *Server) writeRaw(resp *echo.Response, data []byte) error {
	size := s.opts.ChunkSize
	if size <= 0 {
		size = len(data)
	}
	for len(data) > 0 {
		n := min(size, len(data))
		if _, err := resp.Write(data[:n]); err != nil {
			return err
		}
		resp.Flush()
		data = data[n:]
	}
	return nil
}
