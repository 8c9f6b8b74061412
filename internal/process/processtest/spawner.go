// Package processtest provides a scripted process.Spawner that never
// touches the OS, for testing the monitor and the supervision loop.
package processtest

import (
	"io"
	"sync"
	"time"

	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/process"
)

// Script describes what one fake child does.
type Script struct {
	// Stdout and Stderr are written to the child's streams when output is
	// forwarded. Each write blocks until the bytes are read.
	Stdout []byte
	Stderr []byte

	// Status is returned by Wait.
	Status process.ExitStatus

	// WaitErr makes Wait fail as if the OS wait primitive broke.
	WaitErr error

	// Delay is how long the child keeps running after its output is drained.
	Delay time.Duration

	// Hold, if set, keeps the child running until it is closed.
	Hold <-chan struct{}
}

// Spawner is a fake process.Spawner.
type Spawner struct {
	// SpawnErr, if set, is returned by every Spawn call, classified
	// SpawnFailed.
	SpawnErr error

	// Script is used for every child unless Next is set.
	Script Script

	// Next, if set, returns the script for the n-th spawn (starting at 1).
	Next func(n int) Script

	// Label is returned by Name. Defaults to "openvpn".
	Label string

	mu     sync.Mutex
	spawns int
}

// New returns a spawner whose children all follow script.
func New(script Script) *Spawner {
	return &Spawner{Script: script}
}

// Failing returns a spawner whose Spawn always fails with err.
func Failing(err error) *Spawner {
	return &Spawner{SpawnErr: err}
}

// Name returns the label of the fake program.
func (s *Spawner) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "openvpn"
}

// Spawns returns the number of Spawn calls, failed ones included.
func (s *Spawner) Spawns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawns
}

// Spawn starts a fake child following the current script.
func (s *Spawner) Spawn(cmd *process.Command) (process.Child, error) {
	s.mu.Lock()
	s.spawns++
	n := s.spawns
	s.mu.Unlock()

	if s.SpawnErr != nil {
		if errchain.Is(s.SpawnErr, errchain.SpawnFailed) {
			return nil, s.SpawnErr
		}
		return nil, errchain.Tag(errchain.SpawnFailed, s.SpawnErr)
	}

	script := s.Script
	if s.Next != nil {
		script = s.Next(n)
	}

	c := &Child{
		pid:     1000 + n,
		status:  script.Status,
		waitErr: script.WaitErr,
		done:    make(chan struct{}),
	}

	var outW, errW *io.PipeWriter
	if cmd.PipeOutput() {
		c.stdout, outW = io.Pipe()
		c.stderr, errW = io.Pipe()
	}

	go c.run(script, outW, errW)
	return c, nil
}

// Child is a fake running process.
type Child struct {
	pid     int
	stdout  *io.PipeReader
	stderr  *io.PipeReader
	status  process.ExitStatus
	waitErr error
	done    chan struct{}
}

func (c *Child) run(script Script, outW, errW *io.PipeWriter) {
	var wg sync.WaitGroup
	write := func(w *io.PipeWriter, data []byte) {
		defer wg.Done()
		if len(data) > 0 {
			w.Write(data)
		}
		w.Close()
	}
	if outW != nil {
		wg.Add(2)
		go write(outW, script.Stdout)
		go write(errW, script.Stderr)
	}
	wg.Wait()

	if script.Delay > 0 {
		time.Sleep(script.Delay)
	}
	if script.Hold != nil {
		<-script.Hold
	}
	close(c.done)
}

// Pid returns the fake process id.
func (c *Child) Pid() int { return c.pid }

// Stdout returns the stdout reader, or nil when output is not forwarded.
func (c *Child) Stdout() io.ReadCloser {
	if c.stdout == nil {
		return nil
	}
	return c.stdout
}

// Stderr returns the stderr reader, or nil when output is not forwarded.
func (c *Child) Stderr() io.ReadCloser {
	if c.stderr == nil {
		return nil
	}
	return c.stderr
}

// Wait blocks until the scripted exit.
func (c *Child) Wait() (process.ExitStatus, error) {
	<-c.done
	return c.status, c.waitErr
}
