// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the plutus client:
// submissions, stage progress, the final funding report, and the error
// signals delivered to consumers.
package types

import (
	"strings"
	"time"
)

// DefaultMaxResults is the number of funded papers requested when a
// submission does not specify one.
const DefaultMaxResults = 50

// Submission is one request for a funding report. It is immutable once
// created; each Submission owns at most one open connection.
type Submission struct {
	// ID identifies the submission in logs and in the report archive.
	ID string `json:"id" yaml:"id"`

	// Description is the free-text research project description.
	Description string `json:"description" yaml:"description"`

	// MaxResults caps the number of funded papers the pipeline collects.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// CreatedAt is when the submission was made.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Valid reports whether the submission has a non-blank description.
func (s Submission) Valid() bool {
	return strings.TrimSpace(s.Description) != ""
}

// Result is the final structured report delivered by the terminal frame.
type Result struct {
	// SearchTerms lists the terms the pipeline searched for, in order.
	SearchTerms []string `json:"search_terms" yaml:"search_terms"`

	// Summary is the Markdown funding summary.
	Summary string `json:"summary" yaml:"summary"`

	// FundersData lists the funded papers found, in pipeline order.
	FundersData []FunderRecord `json:"funders_data" yaml:"funders_data"`
}

// FunderRecord is one funded paper and the grants that supported it.
type FunderRecord struct {
	Title           string  `json:"title" yaml:"title"`
	PublicationYear int     `json:"publication_year" yaml:"publication_year"`
	CitedByCount    int     `json:"cited_by_count" yaml:"cited_by_count"`
	DOI             *string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Grants          []Grant `json:"grants" yaml:"grants"`
}

// Grant is a single funding acknowledgement on a paper.
type Grant struct {
	FunderDisplayName string  `json:"funder_display_name" yaml:"funder_display_name"`
	AwardID           *string `json:"award_id,omitempty" yaml:"award_id,omitempty"`
}

// Update is one element of the stream a consumer receives for a submission.
// Exactly one field is set.
type Update struct {
	Progress *ProgressState `json:"progress,omitempty"`
	Result   *Result        `json:"result,omitempty"`
	Err      *ErrorSignal   `json:"error,omitempty"`
}
