// Package monitor starts the OpenVPN child process and reports its
// termination asynchronously.
package monitor

import (
	"io"
	"log/slog"
	"time"

	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/metrics"
	"github.com/tdr130/mullvadvpn-app/internal/process"
)

// ChildMonitor starts one kind of child over and over. It keeps the command
// and the spawner between starts and nothing else.
type ChildMonitor struct {
	cmd     *process.Command
	spawner process.Spawner
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Config holds configuration for creating a new ChildMonitor.
type Config struct {
	Command *process.Command
	Spawner process.Spawner
	Logger  *slog.Logger
	Metrics *metrics.Collector // optional
}

// New creates a monitor for cfg.Command.
func New(cfg Config) *ChildMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChildMonitor{
		cmd:     cfg.Command,
		spawner: cfg.Spawner,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Name returns the name of the monitored program.
func (m *ChildMonitor) Name() string {
	return m.spawner.Name()
}

// Start spawns the child and returns without waiting for it. onExit is
// called exactly once, from another goroutine, when the child has exited;
// clean is true only for a normal exit with status 0.
//
// When the command forwards output, the child's stdout and stderr are
// returned and the caller owns them. Otherwise both are nil.
func (m *ChildMonitor) Start(onExit func(clean bool)) (stdout, stderr io.ReadCloser, err error) {
	child, err := m.spawner.Spawn(m.cmd)
	if err != nil {
		if !errchain.Is(err, errchain.SpawnFailed) {
			err = errchain.Tag(errchain.SpawnFailed, err)
		}
		m.metrics.RecordStartFailure()
		m.logger.Error("process_spawn_failed",
			"binary", m.cmd.Path(),
			"error", err,
		)
		return nil, nil, errchain.Wrap(errchain.StartFailed, err, "unable to start process")
	}

	m.metrics.ProcessStarted()
	m.logger.Info("process_started",
		"pid", child.Pid(),
		"binary", m.cmd.Path(),
		"pipe_output", m.cmd.PipeOutput(),
	)

	go m.watch(child, time.Now(), onExit)

	if !m.cmd.PipeOutput() {
		return nil, nil, nil
	}
	return child.Stdout(), child.Stderr(), nil
}

// watch waits for the child and delivers the outcome. A failing wait is
// reported as an unclean exit so the caller is never left waiting.
func (m *ChildMonitor) watch(child process.Child, startTime time.Time, onExit func(clean bool)) {
	status, err := child.Wait()
	uptime := time.Since(startTime)

	clean := err == nil && status.Success()
	if err != nil {
		m.logger.Error("process_wait_failed",
			"pid", child.Pid(),
			"kind", errchain.WaitFailed.String(),
			"error", err,
		)
	} else {
		m.logger.Info("process_exited",
			"pid", child.Pid(),
			"exit_code", status.Code,
			"signal", status.Signal,
			"clean", clean,
			"uptime", uptime.String(),
		)
	}

	m.metrics.RecordExit(clean, uptime)
	onExit(clean)
}
