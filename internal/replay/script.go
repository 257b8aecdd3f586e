// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package replay serves a scripted report run over the same HTTP contract
// as the report service, for demos and tests.
//
// A script is YAML:
//
//	frames_per_second: 4
//	drop_after: 0
//	frames:
//	  - {stage: searchTerms, status: completed, data: [gene therapy]}
//	  - {stage: paperSearch, status: completed, term: gene therapy}
//	  - '{"error": "sent verbatim"}'
//
// Mapping and sequence items are JSON-encoded; scalar items are sent as
// written, so malformed frames can be scripted too.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/plutus/internal/frame"
	"github.com/pdiddy/plutus/pkg/types"
)

// ErrNoOutcome is returned by Script.Outcome when no frame ends the run.
var ErrNoOutcome = errors.New("script has no terminal or error frame")

// Frame is one scripted payload, held as the bytes sent on the wire.
type Frame []byte

// UnmarshalYAML keeps scalars verbatim and JSON-encodes anything else.
func (f *Frame) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = Frame(node.Value)
		return nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: encoding frame: %w", node.Line, err)
	}
	*f = Frame(data)
	return nil
}

// Script is a recorded report run.
type Script struct {
	// FramesPerSecond paces delivery. Zero sends frames without delay.
	FramesPerSecond float64 `yaml:"frames_per_second"`

	// DropAfter ends the stream abruptly after that many frames. Zero
	// sends every frame.
	DropAfter int `yaml:"drop_after"`

	Frames []Frame `yaml:"frames"`
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing replay script: %w", err)
	}
	if len(s.Frames) == 0 {
		return nil, errors.New("replay script has no frames")
	}
	if s.FramesPerSecond < 0 || s.DropAfter < 0 {
		return nil, errors.New("frames_per_second and drop_after must not be negative")
	}
	return &s, nil
}

// LoadScript reads and decodes the script at path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading replay script: %w", err)
	}
	return ParseScript(data)
}

// Outcome returns the first frame that would end a streamed run: the raw
// terminal frame, or the error signal it carries. Progress frames are
// skipped.
func (s *Script) Outcome() ([]byte, *types.ErrorSignal, error) {
	for _, f := range s.Frames {
		parsed := frame.Parse(f)
		switch parsed.Kind {
		case frame.KindTerminal:
			return f, nil, nil
		case frame.KindError:
			sig := parsed.Signal
			return nil, &sig, nil
		}
	}
	return nil, nil, ErrNoOutcome
}
