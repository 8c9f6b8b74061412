package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tdr130/mullvadvpn-app/internal/stats"
	"github.com/tdr130/mullvadvpn-app/internal/supervisor"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the single dashboard page.
func (m Model) renderDashboard() string {
	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderLifecycle(),
	}

	if m.snapshot.Exits() > 0 {
		sections = append(sections, m.renderUptime())
	}

	sections = append(sections, m.renderOutput(), m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" talpid-cli │ %s │ Cycle: %d │ Elapsed: %s ",
		m.binary,
		m.cycle,
		stats.FormatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Status
// =============================================================================

func (m Model) renderStatus() string {
	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("State:"),
			stateStyle(m.state).Render(m.state.String()),
		),
		RenderKeyValue("Uptime", formatUptime(m.Uptime())),
	}

	if m.lastExit != nil {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Last exit:"),
			GetOutcomeLabel(m.lastExit.Clean),
			mutedStyle.Render(fmt.Sprintf(" (cycle %d after %s)", m.lastExit.Cycle, formatUptime(m.lastExit.Uptime))),
		))
	}

	if len(m.remotes) > 0 {
		rows = append(rows, RenderKeyValue("Remotes", truncate(strings.Join(m.remotes, ", "), m.width-26)))
	}

	if m.err != nil {
		rows = append(rows, statusError.Render("✗ "+m.err.Error()))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Supervisor")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

func stateStyle(s supervisor.State) lipgloss.Style {
	switch s {
	case supervisor.StateRunning:
		return statusOK
	case supervisor.StateWaiting:
		return statusWarning
	case supervisor.StateStopped:
		return statusError
	default:
		return statusInfo
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func (m Model) renderLifecycle() string {
	s := m.snapshot

	unclean := valueStyle
	if s.UncleanExits > 0 {
		unclean = valueBadStyle
	}

	rows := []string{
		RenderKeyValue("Starts", stats.FormatNumber(s.Starts)),
		RenderKeyValue("Restarts", stats.FormatNumber(s.Restarts)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Clean exits:"),
			valueGoodStyle.Render(stats.FormatNumber(s.CleanExits)),
		),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Unclean exits:"),
			unclean.Render(stats.FormatNumber(s.UncleanExits)),
		),
	}
	if s.RelayedBytes > 0 {
		rows = append(rows, RenderKeyValue("Output relayed", stats.FormatBytes(s.RelayedBytes)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Lifecycle")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Uptime Distribution
// =============================================================================

func (m Model) renderUptime() string {
	s := m.snapshot
	rows := []string{
		RenderKeyValue("P50 (median)", formatUptime(s.UptimeP50)),
		RenderKeyValue("P95", formatUptime(s.UptimeP95)),
		RenderKeyValue("P99", formatUptime(s.UptimeP99)),
		RenderKeyValue("Max", formatUptime(s.UptimeMax)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Child Uptime")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recent Output
// =============================================================================

func (m Model) renderOutput() string {
	var rows []string
	if len(m.lines) == 0 {
		rows = append(rows, dimStyle.Render("(no output; use -v to forward child output)"))
	}
	for _, line := range m.lines {
		rows = append(rows, truncate(line, m.width-6))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Output")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
