// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator tracks one funding-report submission from request to
// final report. It opens the push connection, turns each inbound frame into
// a progress update, a final Result, or an ErrorSignal, and guarantees the
// consumer sees exactly one outcome per submission.
//
// A submission moves Idle → Active → Completed | Failed | Cancelled. Every
// terminal state closes the connection. Submitting again while a submission
// is active cancels the earlier one first.
package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/internal/stream"
	"github.com/pdiddy/plutus/pkg/types"
)

// DefaultIdleTimeout is how long an active stream may stay silent.
const DefaultIdleTimeout = 2 * time.Minute

// ErrEmptyDescription is returned by Submit for a blank description.
var ErrEmptyDescription = errors.New("project description is empty")

// ErrNoGenerator is returned by Submit in sync mode without a Generator.
var ErrNoGenerator = errors.New("sync mode requires a report generator")

// State is the lifecycle state of a submission.
type State int

const (
	StateIdle State = iota
	StateActive
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Archiver stores delivered reports.
type Archiver interface {
	Save(ctx context.Context, sub types.Submission, res types.Result) error
}

// Generator produces a report with one blocking call. It backs sync mode.
type Generator interface {
	Generate(ctx context.Context, sub types.Submission) (types.Result, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithArchiver stores every delivered Result.
func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

// WithIdleTimeout overrides DefaultIdleTimeout. Zero disables the check.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.idle = d }
}

// WithMaxResults sets the MaxResults used when Submit is given none.
func WithMaxResults(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithSync switches to request/response delivery through g. No progress
// updates are produced in this mode.
func WithSync(g Generator) Option {
	return func(c *Coordinator) {
		c.mode = types.ModeSync
		c.generator = g
	}
}

// Coordinator is the consumer-facing entry point. It tracks at most one
// submission at a time.
type Coordinator struct {
	manager    *stream.Manager
	generator  Generator
	archiver   Archiver
	mode       types.Mode
	idle       time.Duration
	maxResults int
	log        logrus.FieldLogger
	newID      func() string

	mu     sync.Mutex
	active *session
}

// New returns a Coordinator that opens connections through t. t may be
// nil when WithSync is given.
func New(t stream.Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		mode:       types.ModeStream,
		idle:       DefaultIdleTimeout,
		maxResults: types.DefaultMaxResults,
		log:        logrus.StandardLogger(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if t != nil {
		c.manager = stream.NewManager(t, c.log)
	}
	return c
}

// Submit starts tracking a report for description. The returned channel
// yields progress updates followed by exactly one Result or ErrorSignal,
// and is closed when the submission ends. If the submission is cancelled
// the channel is closed without either.
func (c *Coordinator) Submit(ctx context.Context, description string, maxResults int) (<-chan types.Update, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	sub := types.Submission{
		ID:          c.newID(),
		Description: strings.TrimSpace(description),
		MaxResults:  maxResults,
		CreatedAt:   time.Now().UTC(),
	}
	if !sub.Valid() {
		return nil, ErrEmptyDescription
	}
	if c.mode == types.ModeSync && c.generator == nil {
		return nil, ErrNoGenerator
	}
	if c.mode == types.ModeStream && c.manager == nil {
		return nil, errors.New("stream mode requires a transport")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil {
		prev.stop()
	}

	var manager *stream.Manager
	if c.mode == types.ModeStream {
		manager = c.manager
	}
	s := newSession(ctx, sub, manager, c.archiver, c.log)
	c.active = s

	s.log.WithFields(logrus.Fields{
		"mode":        c.mode,
		"max_results": sub.MaxResults,
	}).Info("submission started")

	if c.mode == types.ModeSync {
		go s.runSync(c.generator)
		return s.out, nil
	}

	go s.runStream(c.idle)
	return s.out, nil
}

// Cancel stops the active submission, including one whose connection is
// still opening. No update is delivered after Cancel returns. It is a no-op
// when nothing is active.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.stop()
	}
}

// State reports the state of the most recent submission.
func (c *Coordinator) State() State {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return StateIdle
	}
	return s.currentState()
}

// Progress returns the progress of the most recent submission.
func (c *Coordinator) Progress() types.ProgressState {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return types.ProgressState{}
	}
	return s.currentProgress()
}
