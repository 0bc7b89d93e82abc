// Package translate translates VNDB text through an OpenAI-compatible
// chat-completions endpoint.
package translate

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
)

const maxTextLength = 8000

var (
	ErrNotConfigured = errors.New("translation endpoint is not configured")
	ErrEmptyText     = errors.New("text is required")
	ErrTextTooLong   = errors.New("text is too long to translate")
	ErrAPIError      = errors.New("translation API error")
	ErrRateLimited   = errors.New("translation API rate limited")
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	TargetLanguage string
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewClient creates a new translation client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "zh-CN"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger.With().Str("component", "translate").Logger(),
	}
}

// IsConfigured returns true when endpoint, model and key are all set.
func (c *Client) IsConfigured() bool {
	return c.config.BaseURL != "" && c.config.Model != "" && c.config.APIKey != ""
}

// TargetLanguage returns the default target language.
func (c *Client) TargetLanguage() string {
	return c.config.TargetLanguage
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translate returns text translated into targetLang, or the configured
// default language when targetLang is empty.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if len([]rune(text)) > maxTextLength {
		return "", ErrTextTooLong
	}
	if targetLang == "" {
		targetLang = c.config.TargetLanguage
	}

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(targetLang)},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(data, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("message", msg).Msg("translation API error")
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
		return "", fmt.Errorf("%w: %s", ErrAPIError, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrAPIError)
	}

	c.logger.Debug().
		Str("target", targetLang).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(started)).
		Msg("translation completed")

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func systemPrompt(targetLang string) string {
	return fmt.Sprintf("Translate the user's visual novel description into %s. "+
		"Keep character names, titles and formatting. Reply with the translation only.", targetLang)
}
