package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/logging"
	"github.com/tdr130/mullvadvpn-app/internal/metrics"
	"github.com/tdr130/mullvadvpn-app/internal/relay"
	"github.com/tdr130/mullvadvpn-app/internal/stats"
)

// DefaultRestartDelay is the pause between an exit and the next start.
const DefaultRestartDelay = 500 * time.Millisecond

// Starter starts the monitored child. *monitor.ChildMonitor implements it.
type Starter interface {
	// Start spawns the child without waiting for it. onExit is called
	// exactly once after a successful start. The streams are nil unless
	// output is forwarded.
	Start(onExit func(clean bool)) (stdout, stderr io.ReadCloser, err error)

	// Name returns the program name used in error messages.
	Name() string
}

// Output is where relayed child output and status lines are written.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StdOutput binds the supervisor's own standard streams.
func StdOutput() Output {
	return Output{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the loop state changes.
	OnStateChange func(oldState, newState State)

	// OnStart is called after the child of the given cycle has started.
	OnStart func(cycle int)

	// OnExit is called when the termination outcome of a cycle arrives.
	OnExit func(cycle int, clean bool, uptime time.Duration)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Monitor Starter
	Output  Output
	Logger  *slog.Logger

	// Relay forwards child output. If nil, one is created that reports to
	// Metrics, Stats and Tail.
	Relay *relay.Relay

	// Metrics, Stats and Tail are optional.
	Metrics *metrics.Collector
	Stats   *stats.RunStats
	Tail    *logging.Tail

	// RestartDelay defaults to DefaultRestartDelay.
	RestartDelay time.Duration

	// StatusLine renders the line printed after each exit. Defaults to
	// FormatStatus.
	StatusLine func(clean bool) string

	Callbacks Callbacks
}

// Supervisor restarts the monitored child every time it exits, forever.
type Supervisor struct {
	monitor    Starter
	stdout     io.Writer
	stderr     io.Writer
	relay      *relay.Relay
	stats      *stats.RunStats
	tail       *logging.Tail
	logger     *slog.Logger
	delay      time.Duration
	statusLine func(clean bool) string
	callbacks  Callbacks

	stateMu sync.RWMutex
	state   State
	cycle   int
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := cfg.Output
	if out.Stdout == nil {
		out.Stdout = io.Discard
	}
	if out.Stderr == nil {
		out.Stderr = io.Discard
	}

	r := cfg.Relay
	if r == nil {
		r = relay.New(relay.Config{
			Logger:  logger,
			Metrics: cfg.Metrics,
			OnDone:  relayDone(cfg.Stats, cfg.Tail),
		})
	}

	delay := cfg.RestartDelay
	if delay <= 0 {
		delay = DefaultRestartDelay
	}

	statusLine := cfg.StatusLine
	if statusLine == nil {
		statusLine = FormatStatus
	}

	// Relays and status lines share the sinks.
	return &Supervisor{
		monitor:    cfg.Monitor,
		stdout:     relay.NewSyncWriter(out.Stdout),
		stderr:     relay.NewSyncWriter(out.Stderr),
		relay:      r,
		stats:      cfg.Stats,
		tail:       cfg.Tail,
		logger:     logger,
		delay:      delay,
		statusLine: statusLine,
		callbacks:  cfg.Callbacks,
		state:      StateStarting,
	}
}

// relayDone records relayed bytes and completes the stream's pending tail
// line.
func relayDone(rs *stats.RunStats, tail *logging.Tail) func(string, int64, error) {
	return func(stream string, n int64, _ error) {
		if rs != nil {
			rs.RecordRelayedBytes(n)
		}
		if tail != nil {
			tail.Stream(stream).Flush()
		}
	}
}

// FormatStatus returns the status line printed after each exit.
func FormatStatus(clean bool) string {
	return fmt.Sprintf("Monitored process exited. clean: %t\n", clean)
}

// Run starts the child, waits for it to exit, reports the outcome, sleeps
// the restart delay and starts it again, indefinitely.
//
// Run returns only when a start fails, with a StartFailed error, or when
// ctx is cancelled, with ctx.Err(). A running child is not signalled on
// cancellation; it shares the terminal's process group and receives the
// same interrupt as the supervisor.
func (s *Supervisor) Run(ctx context.Context) error {
	name := s.monitor.Name()
	s.logger.Debug("supervisor_starting", "program", name, "restart_delay", s.delay.String())

	for {
		if err := ctx.Err(); err != nil {
			return s.stop(err)
		}

		cycle := s.nextCycle()
		s.setState(StateStarting)

		exited := make(chan bool, 1)
		stdout, stderr, err := s.monitor.Start(func(clean bool) {
			exited <- clean
		})
		if err != nil {
			if s.stats != nil {
				s.stats.RecordStartFailure()
			}
			s.setState(StateStopped)
			return errchain.Wrap(errchain.StartFailed, err, "unable to start "+name)
		}

		startTime := time.Now()
		if s.stats != nil {
			s.stats.RecordStart()
		}
		s.setState(StateRunning)
		if s.callbacks.OnStart != nil {
			s.callbacks.OnStart(cycle)
		}

		if stdout != nil {
			s.relay.Pass(relay.Stdout, stdout, s.sink(relay.Stdout, s.stdout))
		}
		if stderr != nil {
			s.relay.Pass(relay.Stderr, stderr, s.sink(relay.Stderr, s.stderr))
		}

		var clean bool
		select {
		case clean = <-exited:
		case <-ctx.Done():
			return s.stop(ctx.Err())
		}
		uptime := time.Since(startTime)

		fmt.Fprint(s.stdout, s.statusLine(clean))

		if s.stats != nil {
			s.stats.RecordExit(clean, uptime)
		}
		if !clean {
			s.logTail(cycle)
		}
		if s.callbacks.OnExit != nil {
			s.callbacks.OnExit(cycle, clean, uptime)
		}

		s.logger.Info("restart_scheduled",
			"cycle", cycle,
			"clean", clean,
			"uptime", uptime.String(),
			"delay", s.delay.String(),
		)

		s.setState(StateWaiting)
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.stop(ctx.Err())
		case <-timer.C:
		}
	}
}

func (s *Supervisor) stop(err error) error {
	s.setState(StateStopped)
	s.logger.Debug("supervisor_stopped", "reason", err)
	return err
}

// sink adds the stream's output tail next to w when one is configured.
func (s *Supervisor) sink(stream string, w io.Writer) io.Writer {
	if s.tail == nil {
		return w
	}
	return io.MultiWriter(w, s.tail.Stream(stream))
}

// tailLines is how many lines of output are logged after an unclean exit.
const tailLines = 10

func (s *Supervisor) logTail(cycle int) {
	if s.tail == nil {
		return
	}
	lines := s.tail.RecentLines(tailLines)
	if len(lines) == 0 {
		return
	}
	s.logger.Warn("unclean_exit_output",
		"cycle", cycle,
		"lines", lines,
	)
}

// State returns the current state of the loop.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Cycle returns the number of start attempts so far.
func (s *Supervisor) Cycle() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cycle
}

func (s *Supervisor) nextCycle() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.cycle++
	return s.cycle
}

// setState updates the state and calls the callback if registered.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	oldState := s.state
	s.state = newState
	s.stateMu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(oldState, newState)
	}
}
