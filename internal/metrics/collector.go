// Package metrics provides Prometheus metrics for the OpenVPN supervisor.
//
// All metrics live on a Collector and are registered on the registry it is
// created with, so tests can use an isolated registry. Methods on a nil
// *Collector do nothing, which keeps metrics optional for every caller.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "talpid"

// Exit outcome label values.
const (
	OutcomeClean   = "clean"
	OutcomeUnclean = "unclean"
)

// Collector manages all Prometheus metrics of the supervisor.
type Collector struct {
	info          *prometheus.GaugeVec
	starts        prometheus.Counter
	startFailures prometheus.Counter
	exits         *prometheus.CounterVec
	running       prometheus.Gauge
	uptime        prometheus.Histogram
	relayBytes    *prometheus.CounterVec
	relayErrors   *prometheus.CounterVec

	mu          sync.Mutex
	totalStarts int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Binary  string
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the supervisor (value always 1)",
		}, []string{"version", "binary"}),

		starts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "Total successful spawns of the monitored process",
		}),

		startFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_start_failures_total",
			Help:      "Total failed spawns of the monitored process",
		}),

		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Total exits of the monitored process by outcome",
		}, []string{"outcome"}),

		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_running",
			Help:      "Whether the monitored process is running (1) or not (0)",
		}),

		uptime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_uptime_seconds",
			Help:      "How long the monitored process ran before exiting",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600, 21600, 86400},
		}),

		relayBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Bytes forwarded from the monitored process by stream",
		}, []string{"stream"}),

		relayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_errors_total",
			Help:      "Output relays that ended with an I/O error by stream",
		}, []string{"stream"}),
	}

	registry.MustRegister(
		c.info,
		c.starts,
		c.startFailures,
		c.exits,
		c.running,
		c.uptime,
		c.relayBytes,
		c.relayErrors,
	)

	c.info.WithLabelValues(cfg.Version, cfg.Binary).Set(1)

	// Pre-create label values so the series exist before the first event.
	c.exits.WithLabelValues(OutcomeClean)
	c.exits.WithLabelValues(OutcomeUnclean)

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// ProcessStarted records a successful spawn.
func (c *Collector) ProcessStarted() {
	if c == nil {
		return
	}
	c.starts.Inc()
	c.running.Set(1)

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// RecordStartFailure records a failed spawn.
func (c *Collector) RecordStartFailure() {
	if c == nil {
		return
	}
	c.startFailures.Inc()
}

// RecordExit records an exit of the monitored process.
func (c *Collector) RecordExit(clean bool, uptime time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeUnclean
	if clean {
		outcome = OutcomeClean
	}
	c.exits.WithLabelValues(outcome).Inc()
	c.uptime.Observe(uptime.Seconds())
	c.running.Set(0)
}

// RecordRelayBytes adds n forwarded bytes for stream.
func (c *Collector) RecordRelayBytes(stream string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.relayBytes.WithLabelValues(stream).Add(float64(n))
}

// RecordRelayError counts a relay of stream that failed.
func (c *Collector) RecordRelayError(stream string) {
	if c == nil {
		return
	}
	c.relayErrors.WithLabelValues(stream).Inc()
}

// TotalStarts returns the total number of successful spawns.
func (c *Collector) TotalStarts() int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}
