// Package tui provides a live terminal dashboard for the supervisor.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Supervisor state and the current cycle
// - Start and exit counts
// - Child uptime percentiles
// - Recent child output
package tui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	// Box/panel styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder).
				MarginTop(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	valueGoodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	valueBadStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)
)

// =============================================================================
// Outcome Indicator
// =============================================================================

// GetOutcomeStyle returns the style for a termination outcome.
func GetOutcomeStyle(clean bool) lipgloss.Style {
	if clean {
		return valueGoodStyle
	}
	return valueBadStyle
}

// GetOutcomeLabel returns a styled outcome label.
func GetOutcomeLabel(clean bool) string {
	if clean {
		return GetOutcomeStyle(true).Render("clean")
	}
	return GetOutcomeStyle(false).Render("unclean")
}

// =============================================================================
// Status Line
// =============================================================================

// NewStatusFormatter returns a status line renderer for the supervisor's
// output. The outcome is colored only when w is a terminal that supports
// it, so the line stays byte-for-byte plain in pipes and files.
func NewStatusFormatter(w io.Writer) func(clean bool) string {
	r := lipgloss.NewRenderer(w)
	good := r.NewStyle().Foreground(colorSuccess)
	bad := r.NewStyle().Foreground(colorError)

	return func(clean bool) string {
		value := bad.Render("false")
		if clean {
			value = good.Render("true")
		}
		return "Monitored process exited. clean: " + value + "\n"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// truncate shortens s to at most width cells, marking the cut.
func truncate(s string, width int) string {
	if width <= 3 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-3 {
		runes = runes[:width-3]
	}
	return strings.TrimRight(string(runes), " ") + "..."
}
