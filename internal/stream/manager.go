// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream owns the push connection for the active submission.
// The Manager keeps at most one live connection: starting a new one
// force-closes the previous one first.
package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/pkg/types"
)

// Conn is one open push connection. Frames delivers raw frames in the
// order the server sent them and is closed when the connection ends. Err
// reports why it ended and is valid once Frames is closed; it is nil when
// the client closed the connection.
type Conn interface {
	Frames() <-chan []byte
	Err() error
	Close() error
}

// Transport opens push connections for submissions.
type Transport interface {
	Open(ctx context.Context, sub types.Submission) (Conn, error)
}

// ErrCancelled is returned by Manager.Start when the connection was
// cancelled before it finished opening.
var ErrCancelled = errors.New("connection cancelled while opening")

// Handle is the Manager's record of one connection. It exists from the
// moment the connection starts opening.
type Handle struct {
	sub    types.Submission
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   Conn
	once   sync.Once
	closed chan struct{}
}

// Frames delivers inbound frames verbatim.
func (h *Handle) Frames() <-chan []byte { return h.conn.Frames() }

// Err reports why the connection ended.
func (h *Handle) Err() error { return h.conn.Err() }

// Close closes the transport, aborting an open still in progress. It is
// safe to call more than once and from several goroutines; after it
// returns no further frames are delivered.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.cancel()
		h.mu.Lock()
		conn := h.conn
		close(h.closed)
		h.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}

// Closed is closed once Close has run.
func (h *Handle) Closed() <-chan struct{} { return h.closed }

// attach records conn unless the handle was closed while it was opening.
func (h *Handle) attach(conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.closed:
		return false
	default:
		h.conn = conn
		return true
	}
}

// Manager opens and closes connections, one at a time.
type Manager struct {
	transport Transport
	log       logrus.FieldLogger

	mu      sync.Mutex
	current *Handle
}

// NewManager returns a Manager opening connections through t.
func NewManager(t Transport, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{transport: t, log: log}
}

// Start closes any connection still open and opens one for sub. The
// manager lock is not held while the transport opens, so Cancel can abort
// a pending open.
func (m *Manager) Start(ctx context.Context, sub types.Submission) (*Handle, error) {
	openCtx, cancel := context.WithCancel(ctx)
	h := &Handle{sub: sub, cancel: cancel, closed: make(chan struct{})}

	m.mu.Lock()
	prev := m.current
	m.current = h
	m.mu.Unlock()

	if prev != nil {
		select {
		case <-prev.Closed():
		default:
			m.log.WithField("submission", prev.sub.ID).Warn("closing previous connection before starting a new one")
			prev.Close()
		}
	}

	conn, err := m.transport.Open(openCtx, sub)
	if err != nil {
		m.release(h)
		h.Close()
		return nil, err
	}
	if !h.attach(conn) {
		conn.Close()
		m.release(h)
		return nil, ErrCancelled
	}
	m.log.WithField("submission", sub.ID).Debug("connection opened")
	return h, nil
}

// Cancel closes the connection serving submission id, including one that
// is still opening. Connections for other submissions are left alone.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	h := m.current
	if h == nil || h.sub.ID != id {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()
	h.Close()
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == h {
		m.current = nil
	}
}
