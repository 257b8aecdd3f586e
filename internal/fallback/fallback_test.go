// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fallback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/httputil"
	"github.com/pdiddy/plutus/pkg/types"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(types.HTTPConfig{BaseURL: ts.URL, Timeout: 5 * time.Second, UserAgent: "plutus/test"})
}

func TestGenerate_Success(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ReportPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gene therapy for rare disease", body["description"])
		assert.EqualValues(t, 25, body["max_results"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search_terms":["gene therapy"],"summary":"# Report","funders_data":[{"title":"T","publication_year":2020,"cited_by_count":3,"grants":[{"funder_display_name":"NIH"}]}]}`))
	})

	res, err := c.Generate(context.Background(), types.Submission{Description: "gene therapy for rare disease", MaxResults: 25})
	require.NoError(t, err)
	assert.Equal(t, []string{"gene therapy"}, res.SearchTerms)
	require.Len(t, res.FundersData, 1)
	assert.Equal(t, "NIH", res.FundersData[0].Grants[0].FunderDisplayName)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		detail     string
		structured bool
	}{
		{"structured detail", http.StatusInternalServerError, `{"detail":"OpenAI rate limit"}`, "OpenAI rate limit", true},
		{"free text", http.StatusBadGateway, "upstream unavailable", "upstream unavailable", false},
		{"empty body", http.StatusServiceUnavailable, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Generate(context.Background(), types.Submission{Description: "x", MaxResults: 1})
			var se *httputil.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.detail, se.Detail)
			assert.Equal(t, tt.structured, se.Structured)
		})
	}
}

func TestGenerate_MalformedBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"search_terms":["x"]}`))
	})
	_, err := c.Generate(context.Background(), types.Submission{Description: "x", MaxResults: 1})
	var de *frame.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "summary")
}

func TestGenerate_ContextCancelled(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, types.Submission{Description: "x", MaxResults: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
