// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the streaming transport
// and the non-streaming fallback client.
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/plutus/pkg/types"
)

// maxErrorBody caps how much of a non-2xx body is read for the error detail.
const maxErrorBody = 64 << 10

const defaultTimeout = 60 * time.Second

// StatusError is returned when the report service answers with a non-2xx
// status. Detail holds the "detail" field of a structured body, or the
// trimmed free-text body otherwise.
type StatusError struct {
	StatusCode int
	Detail     string

	// Structured is true when Detail came from a {"detail": ...} body.
	Structured bool
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.StatusCode, e.Detail)
}

// CheckResponse returns nil for a 2xx response. Otherwise it drains and
// closes the body and returns a *StatusError describing it.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)

	detail, structured := ErrorDetail(body)
	return &StatusError{StatusCode: resp.StatusCode, Detail: detail, Structured: structured}
}

// ErrorDetail extracts a human-readable message from an error body. A JSON
// object with a "detail" field yields that field; FastAPI-style validation
// lists yield their "msg" entries joined; anything else is returned as
// trimmed text.
func ErrorDetail(body []byte) (detail string, structured bool) {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s, true
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			var msgs []string
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; "), true
			}
		}
		return strings.TrimSpace(string(envelope.Detail)), true
	}
	return strings.TrimSpace(string(body)), false
}

// NewRequest builds a request carrying the configured User-Agent and
// bearer token.
func NewRequest(ctx context.Context, method, url string, body io.Reader, cfg types.HTTPConfig) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return req, nil
}

// Endpoint joins the configured base URL and path.
func Endpoint(cfg types.HTTPConfig, path string) string {
	return strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// NewClient returns a client for request/response calls bounded by
// cfg.Timeout (default 60s).
func NewClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewStreamingClient returns a client for long-lived streams. cfg.Timeout
// bounds dialing and waiting for response headers only; the body may stay
// open indefinitely.
func NewStreamingClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: tr}
}
