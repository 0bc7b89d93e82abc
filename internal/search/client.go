package search

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultUserAgent      = "searchgal-go"
	maxErrorBodySize      = 64 * 1024
)

// Options configures a Client.
type Options struct {
	// ConnectTimeout bounds dialing, the TLS handshake and waiting for
	// response headers. The streamed body is never timed.
	ConnectTimeout time.Duration
	UserAgent      string
	// FlushTrailingLine parses an unterminated final line instead of
	// dropping it.
	FlushTrailingLine bool
	// HTTPClient overrides the client built from ConnectTimeout.
	HTTPClient *http.Client
}

// Client issues streaming searches against a SearchGal API.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     zerolog.Logger
}

// NewClient creates a new search client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(opts.ConnectTimeout)
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		logger:     logger.With().Str("component", "search-client").Logger(),
	}
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = connectTimeout

	return &http.Client{Transport: transport}
}

// Search runs one search to completion. Callbacks fire on the calling
// goroutine in wire order; cancelling ctx aborts the transport and ends
// the search in StateAborted.
func (c *Client) Search(ctx context.Context, req Request, cb Callbacks) Outcome {
	logger := c.logger.With().
		Str("game", req.GameName).
		Str("mode", string(req.Mode)).
		Str("host", req.Host()).
		Logger()

	if err := req.Validate(); err != nil {
		var se *Error
		errors.As(err, &se)
		return failBeforeStream(se, cb)
	}

	started := time.Now()
	logger.Debug().Str("endpoint", req.Endpoint()).Msg("starting search")

	resp, serr := c.open(ctx, req)
	if serr != nil {
		logger.Warn().
			Str("kind", string(serr.Kind)).
			Int("status", serr.Status).
			Err(serr.Err).
			Msg(serr.Message)
		return failBeforeStream(serr, cb)
	}
	defer resp.Body.Close()

	outcome := Stream(ctx, newBodySource(resp.Body), cb, StreamOptions{
		Host:              req.Host(),
		FlushTrailingLine: c.opts.FlushTrailingLine,
		Logger:            logger,
	})

	event := logger.Info()
	if outcome.Err != nil && outcome.State == StateFailed {
		event = logger.Warn().Err(outcome.Err.Err)
	}
	event.
		Str("state", outcome.State.String()).
		Int("platforms", outcome.Progress.Highest).
		Int("total", outcome.Progress.Total).
		Int("events", outcome.Stats.Events).
		Int("malformed", outcome.Stats.Malformed).
		Bool("endedWithoutDone", outcome.EndedWithoutDone).
		Dur("elapsed", time.Since(started)).
		Msg("search finished")

	return outcome
}

func failBeforeStream(err *Error, cb Callbacks) Outcome {
	state := StateFailed
	if err.Kind == KindAborted {
		state = StateAborted
	}
	if cb.OnError != nil {
		cb.OnError(err)
	}
	return Outcome{State: state, Err: err}
}
