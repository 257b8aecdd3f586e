// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/internal/httputil"
	"github.com/pdiddy/plutus/internal/progress"
	"github.com/pdiddy/plutus/pkg/types"
)

// TransportMessage is the user-facing message for connection failures.
const TransportMessage = "Failed to generate report. Please try again."

// IdleTimeoutError reports a stream that went silent.
type IdleTimeoutError struct {
	After time.Duration
}

func (e *IdleTimeoutError) Error() string {
	return fmt.Sprintf("no progress from the report service for %s", e.After)
}

// classify maps any failure of a submission to the signal the consumer
// sees. Signals already produced by the frame parser pass through.
func classify(err error) types.ErrorSignal {
	var sig types.ErrorSignal
	if errors.As(err, &sig) {
		return sig
	}

	var se *httputil.StatusError
	if errors.As(err, &se) {
		msg := se.Detail
		if msg == "" {
			msg = se.Error()
		}
		return types.ErrorSignal{Kind: types.ErrorApplication, Message: msg}
	}

	var de *frame.DecodeError
	if errors.As(err, &de) {
		return types.ErrorSignal{Kind: types.ErrorParse, Message: "unexpected response from the report service: " + de.Error()}
	}

	var ie *IdleTimeoutError
	if errors.As(err, &ie) {
		return types.ErrorSignal{Kind: types.ErrorTransport, Message: ie.Error() + ". Please try again."}
	}

	return types.ErrorSignal{Kind: types.ErrorTransport, Message: TransportMessage}
}

// diagnose logs a non-fatal inconsistency. It never produces a signal.
func diagnose(log logrus.FieldLogger, err error) {
	entry := log.WithError(err)
	var ie *progress.InconsistencyError
	if errors.As(err, &ie) {
		entry = entry.WithField("stage", ie.Stage)
		if ie.Term != "" {
			entry = entry.WithField("term", ie.Term)
		}
	}
	entry.Warn("inconsistent progress event ignored")
}
