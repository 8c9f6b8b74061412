package tui

import (
	"bytes"
	"strings"
	"testing"
)

// =============================================================================
// Tests: Status Line
// =============================================================================

func TestNewStatusFormatter_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	format := NewStatusFormatter(&buf)

	tests := []struct {
		clean bool
		want  string
	}{
		{true, "Monitored process exited. clean: true\n"},
		{false, "Monitored process exited. clean: false\n"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := format(tt.clean); got != tt.want {
				t.Errorf("format(%v) = %q, want %q", tt.clean, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: Outcome
// =============================================================================

func TestGetOutcomeLabel(t *testing.T) {
	if got := GetOutcomeLabel(true); !strings.Contains(got, "clean") || strings.Contains(got, "unclean") {
		t.Errorf("GetOutcomeLabel(true) = %q", got)
	}
	if got := GetOutcomeLabel(false); !strings.Contains(got, "unclean") {
		t.Errorf("GetOutcomeLabel(false) = %q", got)
	}
}

// =============================================================================
// Tests: RenderKeyValue
// =============================================================================

func TestRenderKeyValue(t *testing.T) {
	result := RenderKeyValue("Label", "Value")

	if !strings.Contains(result, "Label") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "Value") {
		t.Error("result should contain value")
	}
}

// =============================================================================
// Tests: truncate
// =============================================================================

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		width int
		want  string
	}{
		{"fits", "short", 10, "short"},
		{"exact", "0123456789", 10, "0123456789"},
		{"cut", "0123456789abc", 10, "0123456..."},
		{"tiny width", "0123456789", 2, "0123456789"},
		{"trailing space", "abc    defghij", 8, "abc..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.s, tt.width); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
			}
		})
	}
}
