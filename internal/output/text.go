// SPDX-License-Identifier: GPL-3.0-or-later

package output

import (
	"io"
	"os"

	"github.com/bassosimone/slp"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Theme holds the styles of the text format.
type Theme struct {
	OK      lipgloss.Style
	Failed  lipgloss.Style
	Target  lipgloss.Style
	Dim     lipgloss.Style
}

// NewDefaultTheme returns the default coloured theme rendered for w.
func NewDefaultTheme(w io.Writer) Theme {
	r := lipgloss.NewRenderer(w)
	return Theme{
		OK:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00")),
		Failed: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
		Target: r.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Dim:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// NewPlainTheme returns a theme without any styling.
func NewPlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{OK: plain, Failed: plain, Target: plain, Dim: plain}
}

// IsTerminal returns whether file is an interactive terminal.
func IsTerminal(file *os.File) bool {
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TextWriter writes one human-readable line per outcome:
//
//	ok   <target> <payload>
//	fail <target> <reason> (<errClass>)
//
// The payload is written exactly as received.
type TextWriter struct {
	lineWriter
	theme Theme
}

var _ Writer = &TextWriter{}

// NewTextWriter returns a [*TextWriter] writing to w, coloured when color is true.
func NewTextWriter(w io.Writer, color bool) *TextWriter {
	theme := NewPlainTheme()
	if color {
		theme = NewDefaultTheme(w)
	}
	return &TextWriter{lineWriter: lineWriter{w: w}, theme: theme}
}

// Write implements [Writer].
func (tw *TextWriter) Write(outcome slp.Outcome) error {
	target := tw.theme.Target.Render(outcome.Target.String())
	var line string
	if outcome.OK() {
		line = tw.theme.OK.Render("ok") + "   " + target + " " + outcome.JSON
	} else {
		line = tw.theme.Failed.Render("fail") + " " + target + " " + outcome.Reason()
		if outcome.ErrClass != "" {
			line += " " + tw.theme.Dim.Render("("+outcome.ErrClass+")")
		}
	}
	return tw.writeLine([]byte(line))
}
