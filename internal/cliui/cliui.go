// Package cliui holds the terminal styles cmd/jin renders status,
// conflict, and error output with. It follows the same
// lipgloss.AdaptiveColor-per-concern layout as the pack's styles
// package, pared down to the handful of tones jin's CLI actually uses,
// and gates color on the terminal's real color profile via termenv
// rather than assuming one.
package cliui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	colorError = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}
	colorOK    = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}
	colorInfo  = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
)

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorWarn)
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	infoStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// colorEnabled reports whether stdout's color profile supports more
// than the ASCII-only profile termenv falls back to on dumb
// terminals, pipes, and NO_COLOR.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return termenv.NewOutput(os.Stdout).ColorProfile() != termenv.Ascii
}

func render(s lipgloss.Style, text string) string {
	if !colorEnabled() {
		return text
	}
	return s.Render(text)
}

// RenderFail styles text for a failed operation.
func RenderFail(text string) string { return render(errorStyle, text) }

// RenderWarn styles text for a non-fatal warning (e.g. a paused apply).
func RenderWarn(text string) string { return render(warnStyle, text) }

// RenderPass styles text for a successful operation.
func RenderPass(text string) string { return render(okStyle, text) }

// RenderAccent styles text for an informational highlight (a ref path,
// a layer name).
func RenderAccent(text string) string { return render(infoStyle, text) }

// RenderMuted styles text for secondary detail (timestamps, counts).
func RenderMuted(text string) string { return render(mutedStyle, text) }
