package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Binary is the supervised executable.
	Binary string

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// ErrorCounts are occurrences of known failure messages in recent
	// child output.
	ErrorCounts map[string]int

	// RecentLines is the tail of child output, oldest first.
	RecentLines []string
}

// FormatExitSummary formats run statistics for display when supervision
// ends.
func FormatExitSummary(snap Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                           talpid-cli Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(snap.Duration))
	if cfg.Binary != "" {
		fmt.Fprintf(&b, "Monitored Binary:       %s\n", cfg.Binary)
	}
	b.WriteString("\n")

	section(&b, "Lifecycle")
	fmt.Fprintf(&b, "  Total Starts:         %s\n", FormatNumber(snap.Starts))
	fmt.Fprintf(&b, "  Total Restarts:       %s\n", FormatNumber(snap.Restarts))
	fmt.Fprintf(&b, "  Clean Exits:          %s\n", FormatNumber(snap.CleanExits))
	fmt.Fprintf(&b, "  Unclean Exits:        %s\n", FormatNumber(snap.UncleanExits))
	if snap.StartFailures > 0 {
		fmt.Fprintf(&b, "  Start Failures:       %s\n", FormatNumber(snap.StartFailures))
	}
	if snap.HasExit {
		fmt.Fprintf(&b, "  Last Exit:            %s\n", outcomeLabel(snap.LastClean))
	}
	if snap.RelayedBytes > 0 {
		fmt.Fprintf(&b, "  Output Relayed:       %s\n", FormatBytes(snap.RelayedBytes))
	}
	b.WriteString("\n")

	if snap.Exits() > 0 {
		section(&b, "Uptime Distribution")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatDuration(snap.UptimeP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatDuration(snap.UptimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatDuration(snap.UptimeP99))
		fmt.Fprintf(&b, "  Max:                  %s\n", FormatDuration(snap.UptimeMax))
		b.WriteString("\n")
	}

	if len(cfg.ErrorCounts) > 0 {
		section(&b, "Errors")

		patterns := make([]string, 0, len(cfg.ErrorCounts))
		for p := range cfg.ErrorCounts {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)

		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-28s %d\n", p+":", cfg.ErrorCounts[p])
		}
		b.WriteString("\n")
	}

	if len(cfg.RecentLines) > 0 {
		section(&b, "Recent Output")
		for _, line := range cfg.RecentLines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(heavyRule)

	return b.String()
}

func section(b *strings.Builder, title string) {
	pad := (len(lightRule)/len("─") - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(lightRule)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

func outcomeLabel(clean bool) string {
	if clean {
		return "clean"
	}
	return "unclean"
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}
