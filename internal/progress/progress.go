// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress applies stage events to the per-submission completion
// state. Apply is a pure function: it never modifies the state it is given,
// and no transition clears a flag.
package progress

import (
	"fmt"

	"github.com/pdiddy/plutus/pkg/types"
)

// InconsistencyError reports a structurally valid event that does not fit
// the current state, such as a paper search for a term that was never
// announced. It is a diagnostic: the state is left unchanged and the
// stream continues.
type InconsistencyError struct {
	Stage  types.Stage
	Term   string
	Reason string
}

func (e *InconsistencyError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("%s event for %q ignored: %s", e.Stage, e.Term, e.Reason)
	}
	return fmt.Sprintf("%s event ignored: %s", e.Stage, e.Reason)
}

// Reset returns the state a new submission starts from.
func Reset() types.ProgressState {
	return types.ProgressState{}
}

// Apply returns the state that results from ev. A non-nil error is always
// an *InconsistencyError and the returned state then equals state.
func Apply(state types.ProgressState, ev types.StageEvent) (types.ProgressState, error) {
	if ev.Status != types.StatusCompleted {
		return state, nil
	}

	next := state
	switch ev.Stage {
	case types.StageSearchTerms:
		if state.SearchTermsDone {
			if !state.PaperSearchDone.SameTerms(ev.Terms) {
				return state, &InconsistencyError{
					Stage:  ev.Stage,
					Reason: "term list differs from the one already announced",
				}
			}
			return state, nil
		}
		next.SearchTermsDone = true
		next.PaperSearchDone = types.NewTermProgress(ev.Terms)

	case types.StagePaperSearch:
		if ev.Term == nil {
			return state, &InconsistencyError{Stage: ev.Stage, Reason: "no term given"}
		}
		term := *ev.Term
		if !state.SearchTermsDone {
			return state, &InconsistencyError{Stage: ev.Stage, Term: term, Reason: "search terms not yet generated"}
		}
		marked, ok := state.PaperSearchDone.MarkDone(term)
		if !ok {
			return state, &InconsistencyError{Stage: ev.Stage, Term: term, Reason: "unknown term"}
		}
		next.PaperSearchDone = marked

	case types.StageFundingData:
		next.FundingDataDone = true

	case types.StageSummary:
		next.SummaryDone = true
	}
	return next, nil
}
