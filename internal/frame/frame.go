// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package frame classifies raw inbound frames from the report service into
// progress notifications, terminal results, and error notifications.
//
// Classification is checked in order: a payload with an "error" field is an
// error notification; a payload with a "stage" field is progress; anything
// else is a terminal candidate validated against the Result shape. Any
// decoding failure yields a parse error, which the caller must treat as
// fatal for the connection.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/plutus/pkg/types"
)

// Kind tags the variant held by Parsed.
type Kind int

const (
	KindProgress Kind = iota + 1
	KindTerminal
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "progress"
	case KindTerminal:
		return "terminal"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Parsed is the classification of one frame. Exactly the field matching
// Kind is populated.
type Parsed struct {
	Kind   Kind
	Event  types.StageEvent
	Result types.Result
	Signal types.ErrorSignal
}

// Fatal reports whether the frame ends the connection.
func (p Parsed) Fatal() bool {
	return p.Kind == KindTerminal || p.Kind == KindError
}

// DecodeError reports a payload that could not be decoded into an expected
// shape.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Parse classifies a raw frame.
func Parse(data []byte) Parsed {
	fields, err := decodeObject(data)
	if err != nil {
		return parseFailure(err)
	}

	if raw, ok := fields["error"]; ok {
		return Parsed{
			Kind: KindError,
			Signal: types.ErrorSignal{
				Kind:    types.ErrorApplication,
				Message: errorMessage(raw),
			},
		}
	}

	if _, ok := fields["stage"]; ok {
		ev, err := decodeEvent(data)
		if err != nil {
			return parseFailure(err)
		}
		return Parsed{Kind: KindProgress, Event: ev}
	}

	res, err := decodeResult(fields)
	if err != nil {
		return parseFailure(err)
	}
	return Parsed{Kind: KindTerminal, Result: res}
}

// DecodeResult decodes a bare Result payload, as returned by the
// non-streaming endpoint. Failures are reported as *DecodeError.
func DecodeResult(data []byte) (types.Result, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return types.Result{}, err
	}
	return decodeResult(fields)
}

func parseFailure(err error) Parsed {
	return Parsed{
		Kind: KindError,
		Signal: types.ErrorSignal{
			Kind:    types.ErrorParse,
			Message: err.Error(),
		},
	}
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &DecodeError{Reason: "payload is not a JSON object"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &DecodeError{Reason: "decoding payload", Err: err}
	}
	return fields, nil
}

// errorMessage returns the error field as text. Non-string values are
// reported in their JSON form.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type wireEvent struct {
	Stage  *string         `json:"stage"`
	Status string          `json:"status"`
	Term   *string         `json:"term"`
	Data   json.RawMessage `json:"data"`
}

func decodeEvent(data []byte) (types.StageEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return types.StageEvent{}, &DecodeError{Reason: "decoding progress frame", Err: err}
	}
	if w.Stage == nil {
		return types.StageEvent{}, &DecodeError{Reason: "progress frame has a null stage"}
	}

	ev := types.StageEvent{
		Stage:  types.Stage(*w.Stage),
		Status: types.Status(w.Status),
		Term:   w.Term,
		Data:   w.Data,
	}

	if ev.Stage == types.StageSearchTerms && ev.Status == types.StatusCompleted {
		var terms []string
		if len(w.Data) == 0 || bytes.Equal(w.Data, []byte("null")) {
			return types.StageEvent{}, &DecodeError{Reason: "searchTerms completion carries no term list"}
		}
		if err := json.Unmarshal(w.Data, &terms); err != nil {
			return types.StageEvent{}, &DecodeError{Reason: "decoding searchTerms term list", Err: err}
		}
		ev.Terms = terms
	}
	return ev, nil
}

var resultFields = []string{"search_terms", "summary", "funders_data"}

func decodeResult(fields map[string]json.RawMessage) (types.Result, error) {
	for _, name := range resultFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return types.Result{}, &DecodeError{Reason: fmt.Sprintf("result is missing %q", name)}
		}
	}

	var res types.Result
	if err := json.Unmarshal(fields["search_terms"], &res.SearchTerms); err != nil {
		return types.Result{}, &DecodeError{Reason: "decoding search_terms", Err: err}
	}
	if err := json.Unmarshal(fields["summary"], &res.Summary); err != nil {
		return types.Result{}, &DecodeError{Reason: "decoding summary", Err: err}
	}
	if err := json.Unmarshal(fields["funders_data"], &res.FundersData); err != nil {
		return types.Result{}, &DecodeError{Reason: "decoding funders_data", Err: err}
	}
	if res.FundersData == nil {
		res.FundersData = []types.FunderRecord{}
	}
	return res, nil
}
