package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sort"
)

// open builds and issues the POST. It never retries.
func (c *Client) open(ctx context.Context, req Request) (*http.Response, *Error) {
	host := req.Host()

	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, newError(KindInvalidRequest, "connect", host, "failed to encode search form", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint(), body)
	if err != nil {
		return nil, newError(KindInvalidRequest, "connect", host, "failed to create search request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/x-ndjson, text/event-stream")
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, host, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, httpStatusError(host, resp.StatusCode, statusErrorMessage(resp))
	}

	// An empty 200 body is still a readable stream; only null-body
	// statuses have nothing to read.
	if resp.Body == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, streamUnavailableError(host)
	}

	return resp, nil
}

// encodeForm writes the multipart body: the game field first, then extra
// fields in key order.
func encodeForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("game", req.GameName); err != nil {
		return nil, "", err
	}

	keys := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		if k == "" || k == "game" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, req.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// transportError classifies a failure that happened before any response.
func transportError(ctx context.Context, host string, err error) *Error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return abortedError("connect", host, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError("connect", host, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError("connect", host, err)
	}
	return networkError("connect", host, err)
}

// statusErrorMessage prefers a structured {"error": "..."} body over the
// static status table.
func statusErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("%s (HTTP %d)", payload.Error, resp.StatusCode)
	}
	return StatusMessage(resp.StatusCode)
}
