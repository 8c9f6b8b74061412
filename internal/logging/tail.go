package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single kept line before truncation.
	MaxLineLength = 4096

	// DefaultTailLines is the number of lines a Tail keeps when none is given.
	DefaultTailLines = 100
)

// Tail keeps the most recent lines of the monitored process's output.
// Each output stream writes through its own TailStream so that partial
// lines of different streams are never joined; all streams share one ring.
type Tail struct {
	logger *slog.Logger

	mu      sync.Mutex
	lines   []string
	next    int
	count   int
	streams map[string]*TailStream
}

// NewTail creates a Tail holding up to size lines. When logger is non-nil,
// lines that look like failures are logged at warn level as they arrive.
func NewTail(size int, logger *slog.Logger) *Tail {
	if size <= 0 {
		size = DefaultTailLines
	}
	return &Tail{
		logger:  logger,
		lines:   make([]string, size),
		streams: make(map[string]*TailStream),
	}
}

// Stream returns the writer for the named stream, creating it on first use.
// The same name always returns the same writer.
func (t *Tail) Stream(name string) *TailStream {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streams[name]
	if !ok {
		s = &TailStream{tail: t, name: name}
		t.streams[name] = s
	}
	return s
}

// TailStream is the io.Writer of one output stream. A relay can feed it next
// to the real sink through io.MultiWriter. Writes may split lines
// arbitrarily; a line is recorded once its newline arrives, or on Flush.
type TailStream struct {
	tail *Tail
	name string

	// guarded by tail.mu
	partial []byte
}

// Write implements io.Writer. It never fails.
func (s *TailStream) Write(p []byte) (int, error) {
	t := s.tail
	t.mu.Lock()
	defer t.mu.Unlock()

	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			s.partial = append(s.partial, data...)
			// Keep memory bounded for output that never ends a line.
			if len(s.partial) > MaxLineLength {
				t.addLocked(string(s.partial))
				s.partial = s.partial[:0]
			}
			break
		}
		s.partial = append(s.partial, data[:i]...)
		t.addLocked(string(s.partial))
		s.partial = s.partial[:0]
		data = data[i+1:]
	}
	return len(p), nil
}

// Flush records this stream's pending unterminated line, if any.
func (s *TailStream) Flush() {
	t := s.tail
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(s.partial) > 0 {
		t.addLocked(string(s.partial))
		s.partial = s.partial[:0]
	}
}

func (t *Tail) addLocked(line string) {
	line = strings.TrimSuffix(line, "\r")
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.count < len(t.lines) {
		t.count++
	}

	if t.logger != nil && ClassifyLine(line) >= slog.LevelWarn {
		t.logger.Warn("child_output", "line", line)
	}
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (t *Tail) RecentLines(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n > t.count {
		n = t.count
	}
	if n <= 0 {
		return nil
	}

	size := len(t.lines)
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (t.next - n + i + size) % size
		lines = append(lines, t.lines[idx])
	}
	return lines
}

// ErrorPatterns are OpenVPN messages worth counting in an exit summary.
var ErrorPatterns = []string{
	"AUTH_FAILED",
	"TLS Error",
	"TLS handshake failed",
	"Connection reset",
	"Connection refused",
	"Cannot resolve host address",
	"Exiting due to fatal error",
	"Options error",
}

// CountErrors counts occurrences of ErrorPatterns in the kept lines.
func (t *Tail) CountErrors() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int)
	size := len(t.lines)
	for i := 0; i < t.count; i++ {
		line := t.lines[(t.next-t.count+i+size)%size]
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}

// ClassifyLine picks a log level for a line of OpenVPN output.
func ClassifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "auth_failed"),
		strings.Contains(lower, "fatal error"),
		strings.Contains(lower, "options error"),
		strings.Contains(lower, "tls error"):
		return slog.LevelWarn
	case strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "cannot resolve"),
		strings.Contains(lower, "restarting"):
		return slog.LevelWarn
	case strings.Contains(lower, "initialization sequence completed"):
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
