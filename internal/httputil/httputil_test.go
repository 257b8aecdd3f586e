// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/plutus/pkg/types"
)

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       string
		structured bool
	}{
		{"structured detail", `{"detail":"OpenAI quota exceeded"}`, "OpenAI quota exceeded", true},
		{"validation list", `{"detail":[{"loc":["body","description"],"msg":"field required"},{"msg":"too short"}]}`, "field required; too short", true},
		{"detail object", `{"detail":{"code":7}}`, `{"code":7}`, true},
		{"free text", "  Internal Server Error\n", "Internal Server Error", false},
		{"json without detail", `{"message":"nope"}`, `{"message":"nope"}`, false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, structured := ErrorDetail([]byte(tt.body))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.structured, structured)
		})
	}
}

func TestCheckResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/detail":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"upstream failed"}`))
		default:
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ok")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, CheckResponse(resp))

	resp, err = http.Get(ts.URL + "/detail")
	require.NoError(t, err)
	var se *StatusError
	require.ErrorAs(t, CheckResponse(resp), &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "upstream failed", se.Detail)
	assert.True(t, se.Structured)

	resp, err = http.Get(ts.URL + "/other")
	require.NoError(t, err)
	require.ErrorAs(t, CheckResponse(resp), &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "bad gateway", se.Detail)
	assert.False(t, se.Structured)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "server returned HTTP 503", (&StatusError{StatusCode: 503}).Error())
	assert.Equal(t, "server returned HTTP 500: boom", (&StatusError{StatusCode: 500, Detail: "boom"}).Error())
}

func TestNewRequest_Headers(t *testing.T) {
	cfg := types.HTTPConfig{UserAgent: "plutus/test", Token: "tok"}
	req, err := NewRequest(context.Background(), http.MethodGet, "http://example.invalid/x", nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "plutus/test", req.Header.Get("User-Agent"))
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

	req, err = NewRequest(context.Background(), http.MethodGet, "http://example.invalid/x", nil, types.HTTPConfig{})
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestEndpoint(t *testing.T) {
	cfg := types.HTTPConfig{BaseURL: "http://localhost:8000/"}
	assert.Equal(t, "http://localhost:8000/stream_funding_report", Endpoint(cfg, "/stream_funding_report"))
	cfg.BaseURL = "http://localhost:8000/api"
	assert.Equal(t, "http://localhost:8000/api/generate_funding_report", Endpoint(cfg, "generate_funding_report"))
}

func TestClients_DefaultTimeout(t *testing.T) {
	assert.Equal(t, defaultTimeout, NewClient(types.HTTPConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, NewClient(types.HTTPConfig{Timeout: 5 * time.Second}).Timeout)

	sc := NewStreamingClient(types.HTTPConfig{Timeout: 5 * time.Second})
	assert.Zero(t, sc.Timeout, "streams must not have a whole-request timeout")
	tr, ok := sc.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
}
