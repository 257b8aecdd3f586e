// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render draws submission progress and finished funding reports
// for a terminal or a plain log stream.
package render

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Options controls terminal features.
type Options struct {
	// Color enables lipgloss styling.
	Color bool

	// Live redraws the progress checklist in place instead of appending
	// one line per completed step.
	Live bool
}

// DetectOptions enables color and live redraw when w is a terminal.
func DetectOptions(w io.Writer) Options {
	tty := IsTerminal(w)
	return Options{Color: tty, Live: tty}
}

// IsTerminal reports whether v is a terminal file.
func IsTerminal(v any) bool {
	file, ok := v.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type styles struct {
	color   bool
	done    lipgloss.Style
	pending lipgloss.Style
	label   lipgloss.Style
	header  lipgloss.Style
	rule    lipgloss.Style
}

func newStyles(color bool) styles {
	return styles{
		color:   color,
		done:    lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true),
		pending: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB")),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		rule:    lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// paint renders s with style only when color is enabled.
func (st styles) paint(style lipgloss.Style, s string) string {
	if !st.color {
		return s
	}
	return style.Render(s)
}
