// Package vndb looks up visual novel metadata on the VNDB Kana API.
package vndb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.vndb.org/kana"
	defaultLimit   = 10
	maxLimit       = 100

	// VNDB allows 200 requests per 5 minutes.
	requestsPerWindow = 200
	rateWindow        = 5 * time.Minute
	rateBurst         = 5
)

var (
	ErrNotFound    = errors.New("no visual novel matched the query")
	ErrAPIError    = errors.New("VNDB API error")
	ErrRateLimited = errors.New("VNDB API rate limited")
	ErrEmptyQuery  = errors.New("query is required")
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	UserAgent string
}

// Client is a VNDB Kana API client.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
	cache      *cache
	logger     zerolog.Logger
}

// NewClient creates a new VNDB client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		limiter:    rate.NewLimiter(rate.Every(rateWindow/requestsPerWindow), rateBurst),
		cache:      newCache(cfg.CacheTTL, 0),
		logger:     logger.With().Str("component", "vndb").Logger(),
	}
}

// Search returns up to limit visual novels matching name, best match first.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]Metadata, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	key := fmt.Sprintf("%s|%d", strings.ToLower(name), limit)
	if cached, ok := c.cache.get(key); ok {
		c.logger.Debug().Str("query", name).Msg("VNDB cache hit")
		return cached, nil
	}

	var response queryResponse
	err := c.post(ctx, "/vn", queryRequest{
		Filters: []any{"search", "=", name},
		Fields:  queryFields,
		Results: limit,
		Sort:    "searchrank",
	}, &response)
	if err != nil {
		return nil, err
	}

	if len(response.Results) == 0 {
		return nil, ErrNotFound
	}

	results := make([]Metadata, len(response.Results))
	for i, r := range response.Results {
		results[i] = r.toMetadata()
	}
	c.cache.set(key, results)

	c.logger.Debug().
		Str("query", name).
		Int("results", len(results)).
		Msg("VNDB search completed")

	return results, nil
}

// Lookup returns the best match for name.
func (c *Client) Lookup(ctx context.Context, name string) (*Metadata, error) {
	results, err := c.Search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// VNDB answers errors with a plain text body.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("message", strings.TrimSpace(string(msg))).
			Msg("VNDB API error")

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return ErrRateLimited
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", ErrAPIError, strings.TrimSpace(string(msg)))
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
