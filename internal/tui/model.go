package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tdr130/mullvadvpn-app/internal/stats"
	"github.com/tdr130/mullvadvpn-app/internal/supervisor"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StateMsg reports a supervisor state change.
type StateMsg struct {
	Old supervisor.State
	New supervisor.State
}

// StartMsg reports that the child of a cycle has started.
type StartMsg struct {
	Cycle int
	Time  time.Time
}

// ExitMsg reports the termination outcome of a cycle.
type ExitMsg struct {
	Cycle  int
	Clean  bool
	Uptime time.Duration
}

// QuitMsg signals the TUI should exit. Err is why supervision ended, if it
// ended on its own.
type QuitMsg struct {
	Err error
}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	binary      string
	remotes     []string
	metricsAddr string

	// Supervisor state
	state     supervisor.State
	cycle     int
	lastStart time.Time
	lastExit  *ExitMsg
	err       error

	// Refreshed on every tick
	snapshot   stats.Snapshot
	lines      []string
	startTime  time.Time
	lastUpdate time.Time

	// Display options
	width  int
	height int

	statsSource  StatsSource
	outputSource OutputSource
	cancel       context.CancelFunc

	quitting bool
}

// StatsSource provides run statistics. *stats.RunStats implements it.
type StatsSource interface {
	Snapshot() stats.Snapshot
}

// OutputSource provides recent child output. *logging.Tail implements it.
type OutputSource interface {
	RecentLines(n int) []string
}

// Config holds TUI configuration.
type Config struct {
	Binary      string
	Remotes     []string
	MetricsAddr string
	Stats       StatsSource
	Output      OutputSource

	// Cancel stops supervision when the operator quits.
	Cancel context.CancelFunc
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		binary:       cfg.Binary,
		remotes:      cfg.Remotes,
		metricsAddr:  cfg.MetricsAddr,
		statsSource:  cfg.Stats,
		outputSource: cfg.Output,
		cancel:       cfg.Cancel,
		state:        supervisor.StateStarting,
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		width:        80,
		height:       24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "r":
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case StateMsg:
		m.state = msg.New
		return m, nil

	case StartMsg:
		m.cycle = msg.Cycle
		m.lastStart = msg.Time
		return m, nil

	case ExitMsg:
		exit := msg
		m.lastExit = &exit
		m.refresh()
		return m, nil

	case QuitMsg:
		m.quitting = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

func (m *Model) refresh() {
	if m.statsSource != nil {
		m.snapshot = m.statsSource.Snapshot()
	}
	if m.outputSource != nil {
		m.lines = m.outputSource.RecentLines(m.outputRows())
	}
	m.lastUpdate = time.Now()
}

// outputRows is how many lines of child output fit below the panels.
func (m Model) outputRows() int {
	rows := m.height - 20
	if rows < 3 {
		rows = 3
	}
	return rows
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the supervisor started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// State returns the last reported supervisor state.
func (m Model) State() supervisor.State {
	return m.state
}

// Cycle returns the last started cycle.
func (m Model) Cycle() int {
	return m.cycle
}

// Uptime returns how long the current child has been running, or zero
// when no child is running.
func (m Model) Uptime() time.Duration {
	if m.state != supervisor.StateRunning || m.lastStart.IsZero() {
		return 0
	}
	return time.Since(m.lastStart)
}

// Err returns why supervision ended, if it has.
func (m Model) Err() error {
	return m.err
}

// =============================================================================
// Helper for external use
// =============================================================================

// Callbacks returns supervisor callbacks that forward events to p.
func Callbacks(p *tea.Program) supervisor.Callbacks {
	return supervisor.Callbacks{
		OnStateChange: func(oldState, newState supervisor.State) {
			send(p, StateMsg{Old: oldState, New: newState})
		},
		OnStart: func(cycle int) {
			send(p, StartMsg{Cycle: cycle, Time: time.Now()})
		},
		OnExit: func(cycle int, clean bool, uptime time.Duration) {
			send(p, ExitMsg{Cycle: cycle, Clean: clean, Uptime: uptime})
		},
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program, err error) {
	send(p, QuitMsg{Err: err})
}

func send(p *tea.Program, msg tea.Msg) {
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatUptime formats a duration with millisecond precision below a second.
func formatUptime(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return stats.FormatDuration(d)
}
