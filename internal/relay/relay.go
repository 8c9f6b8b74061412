// Package relay forwards the output streams of a monitored process to the
// supervisor's own streams.
//
// Each Pass runs on its own goroutine and is fire-and-forget: the caller
// never waits for it, and a copy failure stays inside that goroutine where
// it is logged and counted.
package relay

import (
	"io"
	"log/slog"
	"sync"

	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/metrics"
)

// Stream names used for logging and metric labels.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// Relay copies child output streams to sinks.
type Relay struct {
	logger  *slog.Logger
	metrics *metrics.Collector
	onDone  func(stream string, n int64, err error)
}

// Config holds the dependencies of a Relay.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector

	// OnDone, if set, is called once per Pass after the copy has ended and
	// the source has been closed. err is nil on EOF.
	OnDone func(stream string, n int64, err error)
}

// New creates a Relay.
func New(cfg Config) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{
		logger:  logger,
		metrics: cfg.Metrics,
		onDone:  cfg.OnDone,
	}
}

// Pass starts copying src to dst and returns immediately. Bytes are written
// verbatim, without buffering by line. src is closed when the copy ends.
func (r *Relay) Pass(stream string, src io.ReadCloser, dst io.Writer) {
	go r.copy(stream, src, dst)
}

func (r *Relay) copy(stream string, src io.ReadCloser, dst io.Writer) {
	n, err := io.Copy(dst, src)
	src.Close()

	r.metrics.RecordRelayBytes(stream, n)

	if err != nil {
		err = errchain.Wrap(errchain.StreamCopyFailed, err, "unable to relay "+stream)
		r.metrics.RecordRelayError(stream)
		r.logger.Error("relay_failed",
			"stream", stream,
			"bytes", n,
			"error", err,
		)
	} else {
		r.logger.Debug("relay_finished",
			"stream", stream,
			"bytes", n,
		)
	}

	if r.onDone != nil {
		r.onDone(stream, n, err)
	}
}

// SyncWriter serializes writes from several goroutines onto one writer, so
// that a single Write is never interleaved with another.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write implements io.Writer.
func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
