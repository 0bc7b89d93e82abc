// Package search implements the client side of the SearchGal streaming
// search protocol: one POST fans out server-side to many resource platforms
// and results come back as newline-delimited JSON over a chunked body.
package search

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects the endpoint a search is sent to.
type Mode string

const (
	ModeGame  Mode = "game"
	ModePatch Mode = "patch"
)

// Endpoint returns the path suffix for the mode.
func (m Mode) Endpoint() string {
	if m == ModePatch {
		return "/patch"
	}
	return "/gal"
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeGame || m == ModePatch
}

// ParseMode converts a string into a Mode, defaulting to ModeGame for "".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGame:
		return ModeGame, nil
	case ModePatch:
		return ModePatch, nil
	default:
		return "", fmt.Errorf("unknown search mode %q", s)
	}
}

// Request describes one search invocation. It is not modified once issued.
type Request struct {
	APIBaseURL string
	GameName   string
	Mode       Mode
	// Fields holds optional platform-specific form fields, e.g. an access password.
	Fields map[string]string
}

// Validate checks the request before any I/O happens.
func (r Request) Validate() error {
	if strings.TrimSpace(r.GameName) == "" {
		return newError(KindInvalidRequest, "validate", "", "game name is required", nil)
	}
	if !r.Mode.Valid() {
		return newError(KindInvalidRequest, "validate", "", fmt.Sprintf("unknown search mode %q", r.Mode), nil)
	}
	u, err := url.Parse(r.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return newError(KindInvalidRequest, "validate", "", fmt.Sprintf("invalid API base URL %q", r.APIBaseURL), err)
	}
	return nil
}

// Endpoint returns the full URL the request is posted to.
func (r Request) Endpoint() string {
	return strings.TrimRight(r.APIBaseURL, "/") + r.Mode.Endpoint()
}

// Host returns the host part of the API base URL, or the raw base URL when
// it cannot be parsed.
func (r Request) Host() string {
	if u, err := url.Parse(r.APIBaseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return r.APIBaseURL
}

// Color is the semantic tag a platform carries.
type Color string

const (
	ColorLime  Color = "lime"  // no login required
	ColorWhite Color = "white" // login required
	ColorGold  Color = "gold"  // needs special access
	ColorRed   Color = "red"   // platform errored
)

// ParseColor maps a wire value to a Color, falling back to ColorWhite.
func ParseColor(s string) Color {
	switch c := Color(s); c {
	case ColorLime, ColorWhite, ColorGold, ColorRed:
		return c
	default:
		return ColorWhite
	}
}

// Item is one resource link found on a platform.
type Item struct {
	Platform string   `json:"platform"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Tags     []string `json:"tags"`
}

// PlatformResult is the normalized outcome of one platform.
type PlatformResult struct {
	Name  string `json:"name"`
	Color Color  `json:"color"`
	URL   string `json:"url"`
	Items []Item `json:"items"`
	Error string `json:"error"`
}

// Callbacks receive decoded stream events. Nil callbacks are skipped.
// Exactly one of OnComplete or OnError is invoked per search.
type Callbacks struct {
	OnTotal          func(total int)
	OnProgress       func(completed, total int)
	OnPlatformResult func(result PlatformResult)
	OnComplete       func()
	// OnError receives a *Error. Use IsAborted to tell cancellation apart
	// from a real failure.
	OnError func(err error)
}
