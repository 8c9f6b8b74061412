// Package orchestrator wires the supervisor to its configuration and to the
// optional observability surfaces: metrics endpoint, dashboard and exit
// summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tdr130/mullvadvpn-app/internal/config"
	"github.com/tdr130/mullvadvpn-app/internal/logging"
	"github.com/tdr130/mullvadvpn-app/internal/metrics"
	"github.com/tdr130/mullvadvpn-app/internal/monitor"
	"github.com/tdr130/mullvadvpn-app/internal/preflight"
	"github.com/tdr130/mullvadvpn-app/internal/process"
	"github.com/tdr130/mullvadvpn-app/internal/stats"
	"github.com/tdr130/mullvadvpn-app/internal/supervisor"
	"github.com/tdr130/mullvadvpn-app/internal/tui"
)

// Options holds the dependencies of an Orchestrator. Zero values select the
// real process environment.
type Options struct {
	Version string

	// Spawner defaults to process.NewExecSpawner().
	Spawner process.Spawner

	// Stdout and Stderr default to the process's own streams.
	Stdout io.Writer
	Stderr io.Writer

	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Orchestrator coordinates all components of a supervision run.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	command *process.Command
	spawner process.Spawner
	stdout  io.Writer
	stderr  io.Writer

	registry      *prometheus.Registry
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	stats         *stats.RunStats
	tail          *logging.Tail

	supervisor *supervisor.Supervisor
}

// New creates a new Orchestrator for a validated configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	cmd, err := config.Command(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	spawner := opts.Spawner
	if spawner == nil {
		spawner = process.NewExecSpawner()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		command:  cmd,
		spawner:  spawner,
		stdout:   stdout,
		stderr:   stderr,
		registry: registry,
		metrics: metrics.NewCollectorWithRegistry(metrics.CollectorConfig{
			Version: opts.Version,
			Binary:  cmd.Path(),
		}, registry),
		stats: stats.NewRunStats(),
	}

	// In dashboard mode the tail is the only consumer of child output and
	// must not write to the terminal itself.
	tailLogger := logger
	if cfg.TUIEnabled {
		tailLogger = nil
	}
	o.tail = logging.NewTail(logging.DefaultTailLines, tailLogger)

	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServerWithGatherer(cfg.MetricsAddr, registry, logger)
	}

	return o, nil
}

// Run supervises the child until a start fails or the process receives
// SIGINT or SIGTERM. An interrupt is not an error: the exit summary is
// printed and Run returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.command.Path(), o.command.ConfigPath())
		preflight.PrintResults(o.stderr, result)
		if result.Warnings > 0 {
			o.logger.Warn("preflight_warnings", "count", result.Warnings)
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer o.shutdownMetrics()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o.logger.Info("starting",
		"binary", o.command.Path(),
		"config", o.command.ConfigPath(),
		"remotes", len(o.command.Remotes()),
		"pipe_output", o.command.PipeOutput(),
		"metrics_addr", o.config.MetricsAddr,
	)

	useDashboard := o.config.TUIEnabled
	if useDashboard && !isTerminal(o.stdout) {
		fmt.Fprintln(o.stderr, "dashboard unavailable: stdout is not a terminal, using plain output")
		useDashboard = false
	}

	var err error
	if useDashboard {
		err = o.runWithDashboard(ctx)
	} else {
		err = o.runPlain(ctx)
	}

	if errors.Is(err, context.Canceled) {
		o.logger.Info("supervision_interrupted", "cycles", o.supervisor.Cycle())
		o.printExitSummary()
		return nil
	}
	return err
}

// runPlain supervises with child output and status lines on the process's
// own streams.
func (o *Orchestrator) runPlain(ctx context.Context) error {
	o.supervisor = o.newSupervisor(supervisor.Output{
		Stdout: o.stdout,
		Stderr: o.stderr,
	}, tui.NewStatusFormatter(o.stdout), supervisor.Callbacks{})
	return o.supervisor.Run(ctx)
}

// runWithDashboard supervises in the background while the dashboard owns
// the terminal. Quitting the dashboard cancels supervision.
func (o *Orchestrator) runWithDashboard(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(tui.Config{
		Binary:      o.command.Path(),
		Remotes:     remoteStrings(o.command.Remotes()),
		MetricsAddr: o.config.MetricsAddr,
		Stats:       o.stats,
		Output:      o.tail,
		Cancel:      cancel,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	o.supervisor = o.newSupervisor(supervisor.Output{}, nil, tui.Callbacks(p))

	done := make(chan error, 1)
	go func() {
		err := o.supervisor.Run(ctx)
		tui.SendQuit(p, err)
		done <- err
	}()

	_, dashErr := p.Run()
	cancel()

	err := <-done
	if dashErr != nil && !errors.Is(dashErr, tea.ErrProgramKilled) && errors.Is(err, context.Canceled) {
		return fmt.Errorf("dashboard failed: %w", dashErr)
	}
	return err
}

// isTerminal reports whether w is a terminal the dashboard can take over.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func (o *Orchestrator) newSupervisor(out supervisor.Output, statusLine func(bool) string, cb supervisor.Callbacks) *supervisor.Supervisor {
	mon := monitor.New(monitor.Config{
		Command: o.command,
		Spawner: o.spawner,
		Logger:  o.logger,
		Metrics: o.metrics,
	})
	return supervisor.New(supervisor.Config{
		Monitor:      mon,
		Output:       out,
		Logger:       o.logger,
		Metrics:      o.metrics,
		Stats:        o.stats,
		Tail:         o.tail,
		RestartDelay: o.config.RestartDelay,
		StatusLine:   statusLine,
		Callbacks:    cb,
	})
}

func (o *Orchestrator) shutdownMetrics() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// printExitSummary prints a summary of the supervision run.
func (o *Orchestrator) printExitSummary() {
	metricsAddr := ""
	if o.metricsServer != nil {
		metricsAddr = o.metricsServer.Addr()
	}

	fmt.Fprint(o.stdout, stats.FormatExitSummary(o.stats.Snapshot(), stats.SummaryConfig{
		Binary:      o.command.Path(),
		MetricsAddr: metricsAddr,
		ErrorCounts: o.tail.CountErrors(),
		RecentLines: o.tail.RecentLines(10),
	}))
}

func remoteStrings(remotes []process.Remote) []string {
	out := make([]string, 0, len(remotes))
	for _, r := range remotes {
		out = append(out, r.String())
	}
	return out
}

// Stats returns the run statistics for external access.
func (o *Orchestrator) Stats() *stats.RunStats {
	return o.stats
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (o *Orchestrator) MetricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}
