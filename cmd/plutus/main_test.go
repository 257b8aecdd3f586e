// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/plutus/internal/archive"
	"github.com/pdiddy/plutus/internal/coordinator"
	"github.com/pdiddy/plutus/internal/replay"
	"github.com/pdiddy/plutus/internal/secrets"
	"github.com/pdiddy/plutus/pkg/types"
)

const script = `
frames:
  - {stage: searchTerms, status: completed, data: [gene therapy]}
  - {stage: paperSearch, status: completed, term: gene therapy}
  - {stage: fundingData, status: completed}
  - {stage: summary, status: completed}
  - search_terms: [gene therapy]
    summary: "# Funding\n\nNIH leads."
    funders_data:
      - title: AAV vectors
        publication_year: 2021
        cited_by_count: 12
        grants: [{funder_display_name: National Institutes of Health}]
`

func replayServer(t *testing.T, src string) *httptest.Server {
	t.Helper()
	s, err := replay.ParseScript([]byte(src))
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	ts := httptest.NewServer(replay.NewServer(s, replay.WithLogger(log)))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(t *testing.T, baseURL string) types.ClientConfig {
	t.Helper()
	return types.ClientConfig{
		Stream: types.StreamConfig{
			HTTPConfig:  types.HTTPConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
			Mode:        types.ModeStream,
			MaxResults:  10,
			IdleTimeout: 5 * time.Second,
		},
		Archive: types.ArchiveConfig{Dir: t.TempDir()},
	}
}

func TestGenerateReport_Stream(t *testing.T) {
	ts := replayServer(t, script)
	cfg := testConfig(t, ts.URL)
	log, _ := test.NewNullLogger()

	var out, progress bytes.Buffer
	err := generateReport(context.Background(), reportIO{out: &out, progress: &progress}, cfg, log, "gene therapy for rare disease", false)
	require.NoError(t, err)

	assert.Contains(t, progress.String(), "[x] Generating search terms")
	assert.Contains(t, progress.String(), `[x] Finding papers for "gene therapy"`)
	assert.Contains(t, progress.String(), "[x] Generating summary")
	assert.Contains(t, out.String(), "NIH leads.")
	assert.Contains(t, out.String(), "National Institutes of Health")

	store, err := archive.NewStore(cfg.Archive)
	require.NoError(t, err)
	defer store.Close()
	recs, err := store.List(context.Background(), archive.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "gene therapy for rare disease", recs[0].Submission.Description)
	assert.Equal(t, 10, recs[0].Submission.MaxResults)
}

func TestGenerateReport_SyncJSON(t *testing.T) {
	ts := replayServer(t, script)
	cfg := testConfig(t, ts.URL)
	cfg.Stream.Mode = types.ModeSync
	cfg.Archive.Disabled = true
	log, _ := test.NewNullLogger()

	var out, progress bytes.Buffer
	require.NoError(t, generateReport(context.Background(), reportIO{out: &out, progress: &progress}, cfg, log, "gene therapy", true))

	var res types.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, []string{"gene therapy"}, res.SearchTerms)
	assert.Empty(t, progress.String())
}

func TestGenerateReport_ErrorSignal(t *testing.T) {
	ts := replayServer(t, "frames:\n  - {error: rate limited}\n")
	cfg := testConfig(t, ts.URL)
	log, _ := test.NewNullLogger()

	var out, progress bytes.Buffer
	err := generateReport(context.Background(), reportIO{out: &out, progress: &progress}, cfg, log, "gene therapy", true)

	var sig types.ErrorSignal
	require.ErrorAs(t, err, &sig)
	assert.Equal(t, types.ErrorSignal{Kind: types.ErrorApplication, Message: "rate limited"}, sig)
	assert.Contains(t, out.String(), `"message": "rate limited"`)
}

func TestGenerateReport_Unreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()
	cfg := testConfig(t, url)
	cfg.Archive.Disabled = true
	log, _ := test.NewNullLogger()

	var out, progress bytes.Buffer
	err := generateReport(context.Background(), reportIO{out: &out, progress: &progress}, cfg, log, "gene therapy", false)

	var sig types.ErrorSignal
	require.ErrorAs(t, err, &sig)
	assert.Equal(t, types.ErrorTransport, sig.Kind)
	assert.Equal(t, coordinator.TransportMessage, sig.Message)
}

func TestGenerateReport_Validation(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Archive.Disabled = true
	log, _ := test.NewNullLogger()
	rio := reportIO{out: &bytes.Buffer{}, progress: &bytes.Buffer{}}

	err := generateReport(context.Background(), rio, cfg, log, "   ", false)
	assert.ErrorIs(t, err, coordinator.ErrEmptyDescription)

	cfg.Stream.Mode = "carrier-pigeon"
	err = generateReport(context.Background(), rio, cfg, log, "x", false)
	assert.ErrorContains(t, err, "unknown mode")
}

func TestReadDescription(t *testing.T) {
	got, err := readDescription([]string{"gene", "therapy"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gene therapy", got)

	got, err = readDescription(nil, strings.NewReader("  CRISPR screens\n"))
	require.NoError(t, err)
	assert.Equal(t, "CRISPR screens", got)

	_, err = readDescription(nil, strings.NewReader(" \n"))
	assert.Error(t, err)

	_, err = readDescription(nil, nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		setDefaults()
		loadedSecrets = secrets.Secrets{}
	})
	viper.Reset()
	setDefaults()

	cfg := loadConfig()
	assert.Equal(t, "http://localhost:8000", cfg.Stream.BaseURL)
	assert.Equal(t, types.ModeStream, cfg.Stream.Mode)
	assert.Equal(t, types.DefaultMaxResults, cfg.Stream.MaxResults)
	assert.Equal(t, coordinator.DefaultIdleTimeout, cfg.Stream.IdleTimeout)
	assert.Equal(t, "reports", cfg.Archive.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Stream.Token)

	loadedSecrets = secrets.Secrets{secrets.APITokenKey: "from-file"}
	assert.Equal(t, "from-file", loadConfig().Stream.Token)

	viper.Set("token", "from-env")
	viper.Set("stream.idle_timeout", "45s")
	viper.Set("stream.mode", "sync")
	cfg = loadConfig()
	assert.Equal(t, "from-env", cfg.Stream.Token)
	assert.Equal(t, 45*time.Second, cfg.Stream.IdleTimeout)
	assert.Equal(t, types.ModeSync, cfg.Stream.Mode)
}

func TestHistoryHelpers(t *testing.T) {
	assert.Equal(t, "12345678", shortID("1234567890"))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "a b", truncate("a \n b", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
