// Package ui styles terminal output for the campusfeed CLI.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#D68A00", Dark: "#FFB627"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#D1242F", Dark: "#FF5F5F"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	boldStyle   = lipgloss.NewStyle().Bold(true)
	tagStyle    = lipgloss.NewStyle().Foreground(ColorAccent).Padding(0, 1).Border(lipgloss.NormalBorder(), false, true)
)

func init() {
	if !IsTerminal(os.Stdout) || os.Getenv("NO_COLOR") != "" {
		DisableColor()
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisableColor switches every style to plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }
func RenderBold(s string) string   { return boldStyle.Render(s) }

// RenderTag draws a category tag between bars.
func RenderTag(tag string) string {
	return tagStyle.Render(tag)
}
