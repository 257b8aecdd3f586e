// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/plutus/pkg/types"
)

// Step is one line of the progress checklist.
type Step struct {
	Label string
	Done  bool
}

// Checklist lists the steps shown for state. Term and aggregate steps
// appear only once search terms are known.
func Checklist(state types.ProgressState) []Step {
	steps := []Step{{Label: "Generating search terms", Done: state.SearchTermsDone}}
	terms := state.PaperSearchDone.Terms()
	if len(terms) == 0 {
		return steps
	}
	for _, term := range terms {
		done, _ := state.PaperSearchDone.Done(term)
		steps = append(steps, Step{Label: fmt.Sprintf("Finding papers for %q", term), Done: done})
	}
	return append(steps,
		Step{Label: "Compiling funding data", Done: state.FundingDataDone},
		Step{Label: "Generating summary", Done: state.SummaryDone},
	)
}

// Progress writes checklist updates to a terminal or log stream.
type Progress struct {
	w       io.Writer
	opts    Options
	st      styles
	drawn   int
	printed map[string]bool
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer, opts Options) *Progress {
	return &Progress{
		w:       w,
		opts:    opts,
		st:      newStyles(opts.Color),
		printed: make(map[string]bool),
	}
}

// Update draws state. In live mode the previous checklist is replaced;
// otherwise each step is printed once, when it completes.
func (p *Progress) Update(state types.ProgressState) error {
	steps := Checklist(state)
	if p.opts.Live {
		return p.redraw(steps)
	}

	var b strings.Builder
	for _, s := range steps {
		if !s.Done || p.printed[s.Label] {
			continue
		}
		p.printed[s.Label] = true
		b.WriteString(p.line(s))
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Progress) redraw(steps []Step) error {
	var b strings.Builder
	if p.drawn > 0 {
		fmt.Fprintf(&b, "\x1b[%dA", p.drawn)
	}
	for _, s := range steps {
		b.WriteString("\x1b[2K")
		b.WriteString(p.line(s))
		b.WriteByte('\n')
	}
	p.drawn = len(steps)
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Progress) line(s Step) string {
	indent := ""
	if strings.HasPrefix(s.Label, "Finding papers") {
		indent = "  "
	}
	if s.Done {
		return indent + p.mark(true) + " " + p.st.paint(p.st.label, s.Label)
	}
	return indent + p.mark(false) + " " + p.st.paint(p.st.pending, s.Label+"...")
}

func (p *Progress) mark(done bool) string {
	switch {
	case done && p.st.color:
		return p.st.paint(p.st.done, "✓")
	case done:
		return "[x]"
	case p.st.color:
		return p.st.paint(p.st.pending, "○")
	default:
		return "[ ]"
	}
}
