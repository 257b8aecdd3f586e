// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/httputil"
	"github.com/pdiddy/plutus/pkg/types"
)

// StreamPath is the report service's push endpoint.
const StreamPath = "/stream_funding_report"

const defaultMaxFrameBytes = 8 << 20

// ErrStreamClosed is reported when the server ends the stream before the
// connection was closed by the client.
var ErrStreamClosed = errors.New("stream closed by server")

// SSETransport opens server-sent-event connections to the report service.
type SSETransport struct {
	Client *http.Client
	Config types.StreamConfig
}

// NewSSETransport returns a transport using a streaming HTTP client built
// from cfg.
func NewSSETransport(cfg types.StreamConfig) *SSETransport {
	return &SSETransport{
		Client: httputil.NewStreamingClient(cfg.HTTPConfig),
		Config: cfg,
	}
}

// Open issues the stream request for sub and starts reading events. A
// non-2xx answer is returned as *httputil.StatusError.
func (t *SSETransport) Open(ctx context.Context, sub types.Submission) (Conn, error) {
	params := url.Values{
		"description": {sub.Description},
		"max_results": {strconv.Itoa(sub.MaxResults)},
	}
	reqURL := httputil.Endpoint(t.Config.HTTPConfig, StreamPath) + "?" + params.Encode()

	connCtx, cancel := context.WithCancel(ctx)
	req, err := httputil.NewRequest(connCtx, http.MethodGet, reqURL, nil, t.Config.HTTPConfig)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.Client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if err := httputil.CheckResponse(resp); err != nil {
		cancel()
		return nil, err
	}

	maxFrame := t.Config.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = defaultMaxFrameBytes
	}

	c := &sseConn{
		resp:   resp,
		ctx:    connCtx,
		cancel: cancel,
		frames: make(chan []byte),
		done:   make(chan struct{}),
	}
	go c.read(maxFrame)
	return c, nil
}

type sseConn struct {
	resp   *http.Response
	ctx    context.Context
	cancel context.CancelFunc
	frames chan []byte
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closed    bool
	closeOnce sync.Once
}

func (c *sseConn) Frames() <-chan []byte { return c.frames }

func (c *sseConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		c.resp.Body.Close()
		<-c.done
	})
	return nil
}

func (c *sseConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.err = err
}

// read parses the event stream: "data:" lines accumulate into one frame
// that is dispatched on a blank line. Comments and the event, id and retry
// fields are ignored. An event left incomplete at end of stream is dropped.
func (c *sseConn) read(maxFrame int) {
	defer close(c.done)
	defer close(c.frames)

	initial := 64 << 10
	if maxFrame < initial {
		initial = maxFrame
	}
	scanner := bufio.NewScanner(c.resp.Body)
	scanner.Buffer(make([]byte, 0, initial), maxFrame)

	var data bytes.Buffer
	hasData := false

	for scanner.Scan() {
		line := bytes.TrimSuffix(scanner.Bytes(), []byte("\r"))

		if len(line) == 0 {
			if !hasData {
				continue
			}
			payload := make([]byte, data.Len())
			copy(payload, data.Bytes())
			data.Reset()
			hasData = false

			select {
			case c.frames <- payload:
			case <-c.ctx.Done():
				return
			}
			continue
		}

		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if string(field) != "data" {
			continue
		}
		if hasData {
			data.WriteByte('\n')
		}
		data.Write(value)
		hasData = true
		if data.Len() > maxFrame {
			c.fail(tooLarge(maxFrame, nil))
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			c.fail(tooLarge(maxFrame, err))
			return
		}
		c.fail(fmt.Errorf("reading stream: %w", err))
		return
	}
	c.fail(ErrStreamClosed)
}

// tooLarge reports a frame over the size limit as a decode failure.
func tooLarge(maxFrame int, err error) error {
	return &frame.DecodeError{Reason: fmt.Sprintf("frame exceeds %d bytes", maxFrame), Err: err}
}
