// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/pkg/types"
)

const archiveTimeout = 10 * time.Second

// onTerminal freezes the session, closes the connection and delivers res.
// It runs at most once per session: every later frame finds the session
// no longer active and is dropped. Callers hold mu.
func (s *session) onTerminal(res types.Result) {
	if s.state != StateActive {
		s.log.Debug("duplicate terminal frame dropped")
		return
	}
	s.setState(StateCompleted)
	s.closeConn()

	s.log.WithFields(logrus.Fields{
		"search_terms": len(res.SearchTerms),
		"papers":       len(res.FundersData),
	}).Info("report delivered")

	if !s.emit(types.Update{Result: &res}) {
		return
	}
	s.archive(res)
}

// archive stores res. Failures are logged only: the report has already
// been delivered.
func (s *session) archive(res types.Result) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), archiveTimeout)
	defer cancel()
	if err := s.archiver.Save(ctx, s.sub, res); err != nil {
		s.log.WithError(err).Warn("archiving report failed")
	}
}
