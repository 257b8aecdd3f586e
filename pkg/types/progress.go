// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
)

// Stage names one phase of the report pipeline.
type Stage string

const (
	StageSearchTerms Stage = "searchTerms"
	StagePaperSearch Stage = "paperSearch"
	StageFundingData Stage = "fundingData"
	StageSummary     Stage = "summary"
)

// Known reports whether s is one of the four pipeline stages.
func (s Stage) Known() bool {
	switch s {
	case StageSearchTerms, StagePaperSearch, StageFundingData, StageSummary:
		return true
	}
	return false
}

// Status is the status carried by a progress frame. Only StatusCompleted
// changes state; any other value is kept verbatim.
type Status string

const StatusCompleted Status = "completed"

// StageEvent is one decoded progress notification. It is transient and is
// never kept beyond the state update it triggers.
type StageEvent struct {
	Stage  Stage           `json:"stage"`
	Status Status          `json:"status"`
	Term   *string         `json:"term,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`

	// Terms is Data decoded as a term list. Set only for a completed
	// searchTerms event.
	Terms []string `json:"-"`
}

// TermProgress is an ordered term→done mapping. Its key set is fixed when
// it is created; MarkDone never adds keys and never clears a flag.
// The zero value is an empty mapping.
type TermProgress struct {
	terms []string
	done  map[string]bool
}

// NewTermProgress seeds a mapping with one false entry per term, in order.
// Repeated terms keep their first position.
func NewTermProgress(terms []string) TermProgress {
	tp := TermProgress{done: make(map[string]bool, len(terms))}
	for _, t := range terms {
		if _, dup := tp.done[t]; dup {
			continue
		}
		tp.terms = append(tp.terms, t)
		tp.done[t] = false
	}
	return tp
}

// Len returns the number of seeded terms.
func (tp TermProgress) Len() int { return len(tp.terms) }

// Terms returns the seeded terms in order.
func (tp TermProgress) Terms() []string {
	out := make([]string, len(tp.terms))
	copy(out, tp.terms)
	return out
}

// Done reports the flag for term and whether term is a seeded key.
func (tp TermProgress) Done(term string) (done, known bool) {
	done, known = tp.done[term]
	return done, known
}

// DoneCount returns how many terms are flagged done.
func (tp TermProgress) DoneCount() int {
	n := 0
	for _, d := range tp.done {
		if d {
			n++
		}
	}
	return n
}

// SameTerms reports whether terms seeds exactly this mapping.
func (tp TermProgress) SameTerms(terms []string) bool {
	other := NewTermProgress(terms)
	if len(other.terms) != len(tp.terms) {
		return false
	}
	for i := range tp.terms {
		if tp.terms[i] != other.terms[i] {
			return false
		}
	}
	return true
}

// MarkDone returns a copy with term flagged done. The receiver is not
// modified. ok is false, and the copy equals the receiver, when term is
// not a seeded key.
func (tp TermProgress) MarkDone(term string) (TermProgress, bool) {
	if _, known := tp.done[term]; !known {
		return tp, false
	}
	next := TermProgress{
		terms: tp.terms,
		done:  make(map[string]bool, len(tp.done)),
	}
	for k, v := range tp.done {
		next.done[k] = v
	}
	next.done[term] = true
	return next, true
}

type termEntry struct {
	Term string `json:"term"`
	Done bool   `json:"done"`
}

// MarshalJSON encodes the mapping as an ordered list so term order survives.
func (tp TermProgress) MarshalJSON() ([]byte, error) {
	entries := make([]termEntry, len(tp.terms))
	for i, t := range tp.terms {
		entries[i] = termEntry{Term: t, Done: tp.done[t]}
	}
	return json.Marshal(entries)
}

// ProgressState holds the monotonic completion flags for one submission.
// The zero value is the initial all-false, empty state.
type ProgressState struct {
	SearchTermsDone bool         `json:"search_terms_done"`
	PaperSearchDone TermProgress `json:"paper_search_done"`
	FundingDataDone bool         `json:"funding_data_done"`
	SummaryDone     bool         `json:"summary_done"`
}

// Steps returns the number of completed steps and the number of steps
// known so far. Each seeded term counts as one step.
func (p ProgressState) Steps() (done, total int) {
	total = 3 + p.PaperSearchDone.Len()
	for _, b := range []bool{p.SearchTermsDone, p.FundingDataDone, p.SummaryDone} {
		if b {
			done++
		}
	}
	return done + p.PaperSearchDone.DoneCount(), total
}
