package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Console palette
var (
	colorPrompt  = lipgloss.Color("#8BC34A")
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#6b7686")
)

// consoleStyles renders console output. The renderer is bound to the output
// writer, so styles degrade to plain text when it is not a color terminal.
type consoleStyles struct {
	prompt  lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	status  lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newConsoleStyles(w io.Writer) consoleStyles {
	r := lipgloss.NewRenderer(w)
	return consoleStyles{
		prompt:  r.NewStyle().Foreground(colorPrompt).Bold(true),
		err:     r.NewStyle().Foreground(colorError),
		warning: r.NewStyle().Foreground(colorWarning),
		status:  r.NewStyle().Foreground(colorInfo),
		muted:   r.NewStyle().Foreground(colorMuted),
		heading: r.NewStyle().Bold(true).Underline(true),
	}
}
