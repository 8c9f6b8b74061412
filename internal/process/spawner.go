// Package process describes the OpenVPN child process and the ways to spawn it.
package process

import (
	"fmt"
	"io"
	"strings"
)

// Spawner starts child processes from a Command.
// This interface allows the monitor to be independent of the OS.
type Spawner interface {
	// Spawn starts the process described by cmd and returns without waiting
	// for it. Failures are classified errchain.SpawnFailed.
	Spawn(cmd *Command) (Child, error)

	// Name returns a human-readable name for the spawned program.
	Name() string
}

// Child is a running process.
type Child interface {
	// Pid returns the OS process id, or 0 if there is none.
	Pid() int

	// Stdout returns the child's standard output, or nil when output is
	// not forwarded.
	Stdout() io.ReadCloser

	// Stderr returns the child's standard error, or nil when output is
	// not forwarded.
	Stderr() io.ReadCloser

	// Wait blocks until the child exits. The error is non-nil only when the
	// wait itself failed; an unsuccessful exit is described by ExitStatus.
	Wait() (ExitStatus, error)
}

// ExitStatus describes how a process exited.
type ExitStatus struct {
	Code   int
	Signal string
}

// Success reports whether the process exited normally with status 0.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Signal == ""
}

// Error allows ExitStatus to be passed through error returns.
func (s ExitStatus) Error() string {
	if s.Success() {
		return "process exited normally"
	}
	bits := []string{fmt.Sprintf("status=%d", s.Code)}
	if s.Signal != "" {
		bits = append(bits, "signal="+s.Signal)
	}
	return "process exited with " + strings.Join(bits, ", ")
}
