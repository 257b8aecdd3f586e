// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fallback requests a funding report with a single blocking call,
// for report services that do not offer the push endpoint.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/httputil"
	"github.com/pdiddy/plutus/pkg/types"
)

// ReportPath is the report service's request/response endpoint.
const ReportPath = "/generate_funding_report"

// maxBody caps the size of a report body.
const maxBody = 32 << 20

// Client calls the non-streaming report endpoint.
type Client struct {
	HTTP   *http.Client
	Config types.HTTPConfig
}

// New returns a Client whose requests are bounded by cfg.Timeout.
func New(cfg types.HTTPConfig) *Client {
	return &Client{HTTP: httputil.NewClient(cfg), Config: cfg}
}

type reportRequest struct {
	Description string `json:"description"`
	MaxResults  int    `json:"max_results"`
}

// Generate posts sub and decodes the Result. A non-2xx answer is returned
// as *httputil.StatusError and an undecodable body as *frame.DecodeError.
func (c *Client) Generate(ctx context.Context, sub types.Submission) (types.Result, error) {
	payload, err := json.Marshal(reportRequest{Description: sub.Description, MaxResults: sub.MaxResults})
	if err != nil {
		return types.Result{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := httputil.NewRequest(ctx, http.MethodPost, httputil.Endpoint(c.Config, ReportPath), bytes.NewReader(payload), c.Config)
	if err != nil {
		return types.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return types.Result{}, fmt.Errorf("report request: %w", err)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		return types.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return types.Result{}, fmt.Errorf("reading report: %w", err)
	}
	return frame.DecodeResult(body)
}
