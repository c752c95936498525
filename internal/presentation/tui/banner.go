package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the chainlens banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// A subtle gradient (Teal/Cyan)
	lines := []struct {
		text  string
		color string
	}{
		{"       _           _       _                 ", "#2dd4bf"},
		{"   ___| |__   __ _(_)_ __ | | ___ _ __  ___  ", "#22d3ee"},
		{"  / __| '_ \\ / _` | | '_ \\| |/ _ \\ '_ \\/ __| ", "#38bdf8"},
		{" | (__| | | | (_| | | | | | |  __/ | | \\__ \\ ", "#60a5fa"},
		{"  \\___|_| |_|\\__,_|_|_| |_|_|\\___|_| |_|___/ ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+version).Faint())
	fmt.Fprintln(w)
}

// Status renders a colored ok/error marker.
func Status(failed bool) string {
	p := termenv.ColorProfile()
	if failed {
		return termenv.String("error").Foreground(p.Color("#ef4444")).String()
	}
	return termenv.String("ok").Foreground(p.Color("#22c55e")).String()
}
