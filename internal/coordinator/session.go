// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/progress"
	"github.com/pdiddy/plutus/internal/stream"
	"github.com/pdiddy/plutus/pkg/types"
)

// session is the state owned by one submission. All mutation happens with
// mu held, in the single goroutine running the submission, except for
// stop which only moves an active session to cancelled.
type session struct {
	sub      types.Submission
	log      logrus.FieldLogger
	archiver Archiver
	manager  *stream.Manager

	ctx    context.Context
	cancel context.CancelFunc
	out    chan types.Update
	done   chan struct{}

	mu       sync.Mutex
	state    State
	progress types.ProgressState

	// Lock-free copies for readers outside the session goroutine, which
	// may hold mu while blocked on delivery.
	stateView    atomic.Int32
	progressView atomic.Pointer[types.ProgressState]
}

func newSession(parent context.Context, sub types.Submission, manager *stream.Manager, archiver Archiver, log logrus.FieldLogger) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		sub:      sub,
		log:      log.WithField("submission", sub.ID),
		archiver: archiver,
		manager:  manager,
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan types.Update),
		done:     make(chan struct{}),
	}
	s.setState(StateActive)
	s.setProgress(progress.Reset())
	return s
}

// setState and setProgress are called with mu held.
func (s *session) setState(st State) {
	s.state = st
	s.stateView.Store(int32(st))
}

func (s *session) setProgress(p types.ProgressState) {
	s.progress = p
	s.progressView.Store(&p)
}

func (s *session) currentState() State {
	return State(s.stateView.Load())
}

func (s *session) currentProgress() types.ProgressState {
	return *s.progressView.Load()
}

// stop cancels the session and waits for its goroutine to exit. The
// context is cancelled before mu is taken so a pending open or a blocked
// delivery gives up and releases the lock.
func (s *session) stop() {
	s.cancel()

	s.mu.Lock()
	if s.state == StateActive {
		s.setState(StateCancelled)
		s.log.Info("submission cancelled")
	}
	s.mu.Unlock()

	s.closeConn()
	<-s.done
}

// closeConn closes the session's connection, open or still opening.
func (s *session) closeConn() {
	if s.manager != nil {
		s.manager.Cancel(s.sub.ID)
	}
}

// finish runs when the session goroutine exits. A session still active at
// this point lost its parent context and counts as cancelled.
func (s *session) finish() {
	s.mu.Lock()
	if s.state == StateActive {
		s.setState(StateCancelled)
		s.log.Info("submission cancelled by caller context")
	}
	s.mu.Unlock()

	s.closeConn()
	s.cancel()
	close(s.out)
	close(s.done)
}

// emit delivers u unless the session is cancelled first. Callers hold mu.
func (s *session) emit(u types.Update) bool {
	select {
	case s.out <- u:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// runStream opens the connection and consumes it until the session ends.
// An open that fails because the session was cancelled is not reported.
func (s *session) runStream(idle time.Duration) {
	defer s.finish()

	h, err := s.manager.Start(s.ctx, s.sub)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.fail(err)
		return
	}

	var timeout <-chan time.Time
	var timer *time.Timer
	if idle > 0 {
		timer = time.NewTimer(idle)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-s.ctx.Done():
			return

		case data, ok := <-h.Frames():
			if !ok {
				s.disrupted(h.Err())
				return
			}
			if s.handleFrame(data) {
				return
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(idle)
			}

		case <-timeout:
			s.fail(&IdleTimeoutError{After: idle})
			return
		}
	}
}

func (s *session) runSync(g Generator) {
	defer s.finish()

	res, err := g.Generate(s.ctx, s.sub)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.failLocked(err)
		return
	}
	s.onTerminal(res)
}

// disrupted handles a connection that ended without a terminal frame.
func (s *session) disrupted(err error) {
	if err == nil {
		err = stream.ErrStreamClosed
	}
	s.fail(err)
}

// handleFrame applies one inbound frame and reports whether the session
// has ended.
func (s *session) handleFrame(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		s.log.Debug("frame after terminal state dropped")
		return true
	}

	parsed := frame.Parse(data)
	switch parsed.Kind {
	case frame.KindProgress:
		ev := parsed.Event
		if !ev.Stage.Known() || ev.Status != types.StatusCompleted {
			s.log.WithFields(logrus.Fields{"stage": ev.Stage, "status": ev.Status}).Debug("progress event has no effect")
			return false
		}
		next, err := progress.Apply(s.progress, ev)
		if err != nil {
			diagnose(s.log, err)
			return false
		}
		s.setProgress(next)
		s.log.WithFields(logrus.Fields{
			"stage":  ev.Stage,
			"status": ev.Status,
		}).Debug("progress")
		snapshot := next
		if !s.emit(types.Update{Progress: &snapshot}) {
			return true
		}
		return false

	case frame.KindTerminal:
		s.onTerminal(parsed.Result)
		return true

	default:
		s.failLocked(parsed.Signal)
		return true
	}
}

func (s *session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}
	s.failLocked(err)
}

// failLocked moves the session to Failed, closes the connection and
// delivers the classified signal. Callers hold mu.
func (s *session) failLocked(err error) {
	sig := classify(err)
	s.setState(StateFailed)
	s.closeConn()

	s.log.WithFields(logrus.Fields{
		"kind":  sig.Kind,
		"cause": err.Error(),
	}).Error("submission failed")

	s.emit(types.Update{Err: &sig})
}
