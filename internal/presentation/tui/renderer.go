package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a glamour renderer sized to the terminal width,
// or a pass-through when stdout is not a terminal (pipes, CI logs).
func NewRenderer() Renderer {
	if !IsTerminal(os.Stdout) {
		return Plain
	}

	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 20 {
		opts = append(opts, glamour.WithWordWrap(width-4))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain
	}
	return r.Render
}

// Plain returns the markdown unchanged.
func Plain(markdown string) (string, error) {
	return markdown, nil
}
