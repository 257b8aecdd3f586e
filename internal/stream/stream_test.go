// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/httputil"
	"github.com/pdiddy/plutus/pkg/types"
)

// --- SSE transport ---

func sseServer(t *testing.T, body string, hold bool) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StreamPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)
		w.(http.Flusher).Flush()
		if hold {
			<-r.Context().Done()
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func openSSE(t *testing.T, ts *httptest.Server, maxFrame int) Conn {
	t.Helper()
	tr := NewSSETransport(types.StreamConfig{
		HTTPConfig:    types.HTTPConfig{BaseURL: ts.URL, Timeout: 5 * time.Second},
		MaxFrameBytes: maxFrame,
	})
	conn, err := tr.Open(context.Background(), types.Submission{Description: "gene therapy", MaxResults: 10})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func collect(t *testing.T, conn Conn) []string {
	t.Helper()
	var out []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-conn.Frames():
			if !ok {
				return out
			}
			out = append(out, string(f))
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestSSE_ParsesEvents(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: progress\nid: 1\ndata: {\"stage\":\"searchTerms\",\"status\":\"completed\",\"data\":[\"a\"]}\n\n" +
		"data: {\"stage\":\"paperSearch\",\r\ndata: \"status\":\"completed\",\"term\":\"a\"}\r\n\r\n" +
		"retry: 1000\n\n" +
		"data:{\"error\":\"x\"}\n\n" +
		"data: {\"dangling\":true}\n"
	conn := openSSE(t, sseServer(t, body, false), 0)

	frames := collect(t, conn)
	assert.Equal(t, []string{
		`{"stage":"searchTerms","status":"completed","data":["a"]}`,
		"{\"stage\":\"paperSearch\",\n\"status\":\"completed\",\"term\":\"a\"}",
		`{"error":"x"}`,
	}, frames)
	assert.ErrorIs(t, conn.Err(), ErrStreamClosed)
}

func TestSSE_SendsSubmissionAsQuery(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr := NewSSETransport(types.StreamConfig{HTTPConfig: types.HTTPConfig{BaseURL: ts.URL, UserAgent: "plutus/test", Token: "tok"}})
	conn, err := tr.Open(context.Background(), types.Submission{Description: "rare disease & CRISPR", MaxResults: 7})
	require.NoError(t, err)
	collect(t, conn)
	conn.Close()

	got := <-reqs
	assert.Equal(t, "rare disease & CRISPR", got.URL.Query().Get("description"))
	assert.Equal(t, "7", got.URL.Query().Get("max_results"))
	assert.Equal(t, "plutus/test", got.Header.Get("User-Agent"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
}

func TestSSE_OpenStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"pipeline offline"}`))
	}))
	defer ts.Close()

	tr := NewSSETransport(types.StreamConfig{HTTPConfig: types.HTTPConfig{BaseURL: ts.URL}})
	_, err := tr.Open(context.Background(), types.Submission{Description: "x", MaxResults: 1})
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "pipeline offline", se.Detail)
}

func TestSSE_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	tr := NewSSETransport(types.StreamConfig{HTTPConfig: types.HTTPConfig{BaseURL: url, Timeout: time.Second}})
	_, err := tr.Open(context.Background(), types.Submission{Description: "x", MaxResults: 1})
	require.Error(t, err)
}

func TestSSE_FrameTooLarge(t *testing.T) {
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'a'
	}
	conn := openSSE(t, sseServer(t, "data: "+string(big)+"\n\n", false), 1024)

	assert.Empty(t, collect(t, conn))
	require.Error(t, conn.Err())
	assert.NotErrorIs(t, conn.Err(), ErrStreamClosed)
	var de *frame.DecodeError
	require.ErrorAs(t, conn.Err(), &de, "an oversized frame is a decode failure")
	assert.Contains(t, de.Error(), "frame exceeds 1024 bytes")
}

func TestSSE_CloseStopsDelivery(t *testing.T) {
	conn := openSSE(t, sseServer(t, "data: {\"stage\":\"summary\",\"status\":\"completed\"}\n\n", true), 0)

	first := <-conn.Frames()
	assert.Contains(t, string(first), "summary")

	done := make(chan struct{})
	go func() {
		conn.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	_, ok := <-conn.Frames()
	assert.False(t, ok, "frames channel must be closed after Close")
	assert.NoError(t, conn.Err(), "client close is not a failure")
}

// --- Manager ---

type fakeConn struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn { return &fakeConn{frames: make(chan []byte)} }

func (c *fakeConn) Frames() <-chan []byte { return c.frames }
func (c *fakeConn) Err() error            { return nil }
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}
func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	conns []*fakeConn
	err   error
}

func (t *fakeTransport) Open(_ context.Context, _ types.Submission) (Conn, error) {
	if t.err != nil {
		return nil, t.err
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

// pendingTransport blocks in Open until release is closed or ctx is done.
type pendingTransport struct {
	entered chan struct{}
	release chan struct{}
	conn    *fakeConn
}

func newPendingTransport() *pendingTransport {
	return &pendingTransport{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		conn:    newFakeConn(),
	}
}

func (t *pendingTransport) Open(ctx context.Context, _ types.Submission) (Conn, error) {
	close(t.entered)
	select {
	case <-t.release:
		return t.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func startAsync(m *Manager, id string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), types.Submission{ID: id})
		errc <- err
	}()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
		return nil
	}
}

func TestManager_StartClosesPrevious(t *testing.T) {
	log, hook := test.NewNullLogger()
	tr := &fakeTransport{}
	m := NewManager(tr, log)

	first, err := m.Start(context.Background(), types.Submission{ID: "one"})
	require.NoError(t, err)
	second, err := m.Start(context.Background(), types.Submission{ID: "two"})
	require.NoError(t, err)

	require.Len(t, tr.conns, 2)
	assert.True(t, tr.conns[0].isClosed(), "previous connection must be force-closed")
	assert.False(t, tr.conns[1].isClosed())
	assert.Same(t, second, m.current)

	select {
	case <-first.Closed():
	default:
		t.Fatal("first handle not marked closed")
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestManager_Cancel(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(tr, logrus.New())

	h, err := m.Start(context.Background(), types.Submission{ID: "one"})
	require.NoError(t, err)

	m.Cancel("two")
	assert.False(t, tr.conns[0].isClosed(), "other submissions are left alone")

	m.Cancel("one")
	assert.Nil(t, m.current)
	assert.True(t, tr.conns[0].isClosed())
	select {
	case <-h.Closed():
	default:
		t.Fatal("handle not marked closed")
	}
	h.Close() // idempotent
	m.Cancel("one")
}

func TestManager_CancelAbortsPendingOpen(t *testing.T) {
	tr := newPendingTransport()
	m := NewManager(tr, nil)

	errc := startAsync(m, "one")
	<-tr.entered

	m.Cancel("one")
	assert.ErrorIs(t, waitErr(t, errc), context.Canceled)
	assert.Nil(t, m.current)
}

func TestManager_CancelBeforeAttach(t *testing.T) {
	tr := newPendingTransport()
	// Open ignores cancellation and only returns once released.
	m := NewManager(ignoreCtx{tr}, nil)

	errc := startAsync(m, "one")
	<-tr.entered
	m.Cancel("one")
	close(tr.release)

	assert.ErrorIs(t, waitErr(t, errc), ErrCancelled)
	assert.True(t, tr.conn.isClosed(), "a connection opened after cancel is closed")
	assert.Nil(t, m.current)
}

type ignoreCtx struct{ t *pendingTransport }

func (i ignoreCtx) Open(_ context.Context, sub types.Submission) (Conn, error) {
	return i.t.Open(context.Background(), sub)
}

func TestManager_OpenError(t *testing.T) {
	m := NewManager(&fakeTransport{err: fmt.Errorf("refused")}, nil)
	_, err := m.Start(context.Background(), types.Submission{ID: "one"})
	assert.EqualError(t, err, "refused")
	assert.Nil(t, m.current)
}
