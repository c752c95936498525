package tui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// When stdout is not a terminal the markdown is returned untouched, so
// piped output stays plain.
func NewRenderer() func(string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RenderMarkdown renders markdown with the glamour style named style
// ("dark", "light", "notty", ...).
func RenderMarkdown(markdown, style string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style))
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}

// RendererFor returns NewRenderer when style is empty, and otherwise a
// renderer that always applies the named glamour style.
func RendererFor(style string) func(string) (string, error) {
	if style == "" {
		return NewRenderer()
	}
	return func(markdown string) (string, error) {
		return RenderMarkdown(markdown, style)
	}
}
