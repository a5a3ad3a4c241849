// Package ui centralizes text styling for CLI output.
//
// Every helper returns a styled string via lipgloss, which already respects
// NO_COLOR and non-TTY output. Disable() forces plain text for --no-color.
package ui

import "github.com/charmbracelet/lipgloss"

var disabled bool

var (
	bold   = lipgloss.NewStyle().Bold(true)
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func render(style lipgloss.Style, s string) string {
	if disabled {
		return s
	}
	return style.Render(s)
}

func Bold(s string) string   { return render(bold, s) }
func Green(s string) string  { return render(green, s) }
func Red(s string) string    { return render(red, s) }
func Yellow(s string) string { return render(yellow, s) }
func Cyan(s string) string   { return render(cyan, s) }
func Dim(s string) string    { return render(dim, s) }

// Disable forces all render functions to return plain text.
// Call before producing output when the user passes --no-color.
func Disable() { disabled = true }
