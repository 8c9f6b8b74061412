package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tdr130/mullvadvpn-app/internal/stats"
	"github.com/tdr130/mullvadvpn-app/internal/supervisor"
)

// =============================================================================
// Fake sources
// =============================================================================

type fakeStats struct {
	snap  stats.Snapshot
	calls int
}

func (f *fakeStats) Snapshot() stats.Snapshot {
	f.calls++
	return f.snap
}

type fakeOutput struct {
	lines []string
	asked int
}

func (f *fakeOutput) RecentLines(n int) []string {
	f.asked = n
	if n < len(f.lines) {
		return f.lines[len(f.lines)-n:]
	}
	return f.lines
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

// =============================================================================
// Tests: New / Init
// =============================================================================

func TestNew(t *testing.T) {
	model := New(Config{
		Binary:      "openvpn",
		Remotes:     []string{"10.0.0.1:1194"},
		MetricsAddr: "localhost:9090",
	})

	if model.binary != "openvpn" {
		t.Errorf("binary = %s, want openvpn", model.binary)
	}
	if model.metricsAddr != "localhost:9090" {
		t.Errorf("metricsAddr = %s, want localhost:9090", model.metricsAddr)
	}
	if model.State() != supervisor.StateStarting {
		t.Errorf("State() = %v, want starting", model.State())
	}
	if model.width != 80 || model.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", model.width, model.height)
	}
}

func TestModel_Init(t *testing.T) {
	if cmd := New(Config{}).Init(); cmd == nil {
		t.Error("Init() returned nil cmd")
	}
}

// =============================================================================
// Tests: Update - Key Messages
// =============================================================================

func TestModel_Update_QuitKeys(t *testing.T) {
	tests := []struct {
		name     string
		msg      tea.KeyMsg
		wantQuit bool
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, true},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, true},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, true},
		{"r", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}, false},
		{"x", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			m, cmd := update(t, New(Config{Cancel: cancel}), tt.msg)

			if m.quitting != tt.wantQuit {
				t.Errorf("quitting = %v, want %v", m.quitting, tt.wantQuit)
			}
			if tt.wantQuit && cmd == nil {
				t.Error("expected tea.Quit cmd")
			}
			if cancelled := ctx.Err() != nil; cancelled != tt.wantQuit {
				t.Errorf("supervision cancelled = %v, want %v", cancelled, tt.wantQuit)
			}
		})
	}
}

func TestModel_Update_QuitWithoutCancel(t *testing.T) {
	m, cmd := update(t, New(Config{}), tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.quitting || cmd == nil {
		t.Error("expected quit without a cancel func")
	}
}

func TestModel_Update_Refresh(t *testing.T) {
	src := &fakeStats{snap: stats.Snapshot{Starts: 3}}
	m, _ := update(t, New(Config{Stats: src}), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	if src.calls != 1 {
		t.Errorf("Snapshot called %d times, want 1", src.calls)
	}
	if m.snapshot.Starts != 3 {
		t.Errorf("Starts = %d, want 3", m.snapshot.Starts)
	}
}

// =============================================================================
// Tests: Update - Window Size
// =============================================================================

func TestModel_Update_WindowSize(t *testing.T) {
	m, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 40})

	if m.width != 120 {
		t.Errorf("width = %d, want 120", m.width)
	}
	if m.height != 40 {
		t.Errorf("height = %d, want 40", m.height)
	}
	if m.outputRows() != 20 {
		t.Errorf("outputRows() = %d, want 20", m.outputRows())
	}
}

// =============================================================================
// Tests: Update - Tick
// =============================================================================

func TestModel_Update_Tick(t *testing.T) {
	src := &fakeStats{snap: stats.Snapshot{Starts: 5, CleanExits: 2, UncleanExits: 2}}
	out := &fakeOutput{lines: []string{"one", "two", "three", "four"}}

	m, cmd := update(t, New(Config{Stats: src, Output: out}), TickMsg(time.Now()))

	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if m.snapshot.Starts != 5 {
		t.Errorf("Starts = %d, want 5", m.snapshot.Starts)
	}
	if out.asked != 3 {
		t.Errorf("asked for %d lines, want 3 on a 24-row terminal", out.asked)
	}
	if len(m.lines) != 3 || m.lines[2] != "four" {
		t.Errorf("lines = %v", m.lines)
	}
}

func TestModel_Update_TickWithoutSources(t *testing.T) {
	m, cmd := update(t, New(Config{}), TickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if m.snapshot.Starts != 0 || len(m.lines) != 0 {
		t.Error("expected empty model without sources")
	}
}

// =============================================================================
// Tests: Update - Supervisor events
// =============================================================================

func TestModel_Update_SupervisorEvents(t *testing.T) {
	src := &fakeStats{}
	m := New(Config{Stats: src})

	m, _ = update(t, m, StartMsg{Cycle: 2, Time: time.Now().Add(-2 * time.Second)})
	m, _ = update(t, m, StateMsg{Old: supervisor.StateStarting, New: supervisor.StateRunning})

	if m.Cycle() != 2 {
		t.Errorf("Cycle() = %d, want 2", m.Cycle())
	}
	if m.State() != supervisor.StateRunning {
		t.Errorf("State() = %v, want running", m.State())
	}
	if up := m.Uptime(); up < 2*time.Second {
		t.Errorf("Uptime() = %v, want >= 2s", up)
	}

	m, _ = update(t, m, ExitMsg{Cycle: 2, Clean: false, Uptime: 3 * time.Second})
	m, _ = update(t, m, StateMsg{Old: supervisor.StateRunning, New: supervisor.StateWaiting})

	if m.lastExit == nil || m.lastExit.Clean || m.lastExit.Cycle != 2 {
		t.Errorf("lastExit = %+v", m.lastExit)
	}
	if m.Uptime() != 0 {
		t.Errorf("Uptime() = %v while waiting, want 0", m.Uptime())
	}
	if src.calls != 1 {
		t.Errorf("exit should refresh stats, Snapshot called %d times", src.calls)
	}
}

func TestModel_Update_QuitMsg(t *testing.T) {
	errStart := errors.New("unable to start openvpn")
	m, cmd := update(t, New(Config{}), QuitMsg{Err: errStart})

	if !m.quitting {
		t.Error("quitting should be true")
	}
	if cmd == nil {
		t.Error("expected tea.Quit cmd")
	}
	if !errors.Is(m.Err(), errStart) {
		t.Errorf("Err() = %v", m.Err())
	}
}

// =============================================================================
// Tests: View
// =============================================================================

func TestModel_View_Quitting(t *testing.T) {
	m, _ := update(t, New(Config{}), QuitMsg{})
	if view := m.View(); view != "" {
		t.Errorf("View() = %q, want empty when quitting", view)
	}
}

func TestModel_View_Dashboard(t *testing.T) {
	src := &fakeStats{snap: stats.Snapshot{
		Starts:       4,
		Restarts:     3,
		CleanExits:   1,
		UncleanExits: 2,
		UptimeP50:    1500 * time.Millisecond,
		UptimeMax:    90 * time.Second,
	}}
	out := &fakeOutput{lines: []string{"AUTH_FAILED"}}

	m := New(Config{
		Binary:      "openvpn",
		Remotes:     []string{"10.0.0.1:1194/udp"},
		MetricsAddr: "localhost:9090",
		Stats:       src,
		Output:      out,
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, StartMsg{Cycle: 4, Time: time.Now()})
	m, _ = update(t, m, StateMsg{Old: supervisor.StateStarting, New: supervisor.StateRunning})
	m, _ = update(t, m, ExitMsg{Cycle: 3, Clean: false, Uptime: time.Second})
	view := m.View()

	for _, want := range []string{
		"talpid-cli",
		"openvpn",
		"Cycle: 4",
		"running",
		"unclean",
		"Lifecycle",
		"Uptime",
		"AUTH_FAILED",
		"10.0.0.1:1194/udp",
		"localhost:9090",
		"q: quit",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_View_NoOutput(t *testing.T) {
	m, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()

	if !strings.Contains(view, "no output") {
		t.Error("expected hint when no output is forwarded")
	}
	if strings.Contains(view, "Child Uptime") {
		t.Error("uptime panel should be hidden before the first exit")
	}
}

// =============================================================================
// Tests: Callbacks
// =============================================================================

func TestCallbacks_NilProgram(t *testing.T) {
	cb := Callbacks(nil)
	if cb.OnStateChange == nil || cb.OnStart == nil || cb.OnExit == nil {
		t.Fatal("all callbacks should be set")
	}

	// Must not panic without a program.
	cb.OnStateChange(supervisor.StateStarting, supervisor.StateRunning)
	cb.OnStart(1)
	cb.OnExit(1, true, time.Second)
	SendQuit(nil, nil)
}

// =============================================================================
// Tests: Formatting
// =============================================================================

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{-time.Second, "-"},
		{250 * time.Millisecond, "250 ms"},
		{time.Second, "00:00:01"},
		{90 * time.Minute, "01:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatUptime(tt.d); got != tt.want {
				t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
