package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the charter banner with the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"       _                _", "#818cf8"},
		{"   ___| |__   __ _ _ __| |_ ___ _ __", "#a78bfa"},
		{"  / __| '_ \\ / _` | '__| __/ _ \\ '__|", "#c084fc"},
		{" | (__| | | | (_| | |  | ||  __/ |", "#e879f9"},
		{"  \\___|_| |_|\\__,_|_|   \\__\\___|_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintf(w, "  %s\n\n", out.String("governance interpreter "+version).Faint())
}
