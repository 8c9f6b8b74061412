// Package stats tracks the lifecycle of the monitored process across restart
// cycles and formats the summary printed when supervision ends.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// RunStats accumulates counts and uptime percentiles over the lifetime of
// the supervisor. It is safe for concurrent use.
type RunStats struct {
	mu sync.Mutex

	startTime     time.Time
	starts        int64
	startFailures int64
	cleanExits    int64
	uncleanExits  int64
	relayedBytes  int64

	lastStart time.Time
	lastClean bool
	hasExit   bool

	// ~100 centroids, ~10KB
	uptimeDigest *tdigest.TDigest
	maxUptime    time.Duration
}

// NewRunStats creates an empty RunStats whose run duration counts from now.
func NewRunStats() *RunStats {
	return &RunStats{
		startTime:    time.Now(),
		uptimeDigest: tdigest.NewWithCompression(100),
	}
}

// RecordStart records a successful spawn.
func (s *RunStats) RecordStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.lastStart = time.Now()
}

// RecordStartFailure records a spawn that failed.
func (s *RunStats) RecordStartFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startFailures++
}

// RecordExit records the end of a cycle and how long the child ran.
func (s *RunStats) RecordExit(clean bool, uptime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clean {
		s.cleanExits++
	} else {
		s.uncleanExits++
	}
	s.lastClean = clean
	s.hasExit = true

	if uptime < 0 {
		uptime = 0
	}
	s.uptimeDigest.Add(uptime.Seconds(), 1)
	if uptime > s.maxUptime {
		s.maxUptime = uptime
	}
}

// RecordRelayedBytes adds n bytes of forwarded child output.
func (s *RunStats) RecordRelayedBytes(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayedBytes += n
}

// LastStart returns when the child was last spawned.
func (s *RunStats) LastStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStart
}

// Snapshot is a point-in-time copy of RunStats.
type Snapshot struct {
	Duration      time.Duration
	Starts        int64
	StartFailures int64
	CleanExits    int64
	UncleanExits  int64
	RelayedBytes  int64

	// Restarts is the number of starts that followed an exit.
	Restarts int64

	// HasExit is false until the first cycle has ended; LastClean is only
	// meaningful when it is true.
	HasExit   bool
	LastClean bool

	UptimeP50 time.Duration
	UptimeP95 time.Duration
	UptimeP99 time.Duration
	UptimeMax time.Duration
}

// Exits returns the number of completed cycles.
func (s Snapshot) Exits() int64 {
	return s.CleanExits + s.UncleanExits
}

// Snapshot returns the current statistics.
func (s *RunStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Duration:      time.Since(s.startTime),
		Starts:        s.starts,
		StartFailures: s.startFailures,
		CleanExits:    s.cleanExits,
		UncleanExits:  s.uncleanExits,
		RelayedBytes:  s.relayedBytes,
		HasExit:       s.hasExit,
		LastClean:     s.lastClean,
		UptimeMax:     s.maxUptime,
	}
	if s.starts > 1 {
		snap.Restarts = s.starts - 1
	}

	if s.uptimeDigest.Count() > 0 {
		snap.UptimeP50 = quantile(s.uptimeDigest, 0.50)
		snap.UptimeP95 = quantile(s.uptimeDigest, 0.95)
		snap.UptimeP99 = quantile(s.uptimeDigest, 0.99)
	}

	return snap
}

func quantile(d *tdigest.TDigest, q float64) time.Duration {
	return time.Duration(d.Quantile(q) * float64(time.Second))
}
