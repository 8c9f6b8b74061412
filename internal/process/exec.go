package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/tdr130/mullvadvpn-app/internal/errchain"
)

// ExecSpawner starts OpenVPN as a real OS process.
type ExecSpawner struct {
	name string
}

// NewExecSpawner creates a spawner for the OpenVPN binary.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{name: "openvpn"}
}

// Name returns "openvpn".
func (s *ExecSpawner) Name() string {
	return s.name
}

// Spawn starts the process. When output is forwarded, stdout and stderr are
// anonymous pipes: the child gets the write ends and the parent closes its
// copies after Start, so the read ends hit EOF once the child is gone.
// Reading them never races with Wait.
func (s *ExecSpawner) Spawn(c *Command) (Child, error) {
	cmd := exec.Command(c.Path(), c.Args()...)
	child := &execChild{cmd: cmd}

	var writers []*os.File
	closeAll := func() {
		for _, w := range writers {
			w.Close()
		}
		if child.stdout != nil {
			child.stdout.Close()
		}
		if child.stderr != nil {
			child.stderr.Close()
		}
	}

	if c.PipeOutput() {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, errchain.Tag(errchain.SpawnFailed, fmt.Errorf("stdout pipe: %w", err))
		}
		child.stdout = r
		writers = append(writers, w)
		cmd.Stdout = w

		r, w, err = os.Pipe()
		if err != nil {
			closeAll()
			return nil, errchain.Tag(errchain.SpawnFailed, fmt.Errorf("stderr pipe: %w", err))
		}
		child.stderr = r
		writers = append(writers, w)
		cmd.Stderr = w
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, errchain.Tag(errchain.SpawnFailed, err)
	}

	// IMPORTANT: the parent's write ends must be closed after Start,
	// otherwise the readers never see EOF.
	for _, w := range writers {
		w.Close()
	}

	return child, nil
}

type execChild struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
}

func (c *execChild) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *execChild) Stdout() io.ReadCloser {
	if c.stdout == nil {
		return nil
	}
	return c.stdout
}

func (c *execChild) Stderr() io.ReadCloser {
	if c.stderr == nil {
		return nil
	}
	return c.stderr
}

func (c *execChild) Wait() (ExitStatus, error) {
	return exitStatus(c.cmd.Wait())
}

// exitStatus converts a Wait() error into an ExitStatus. Errors that do not
// describe an exit are wait failures.
func exitStatus(err error) (ExitStatus, error) {
	if err == nil {
		return ExitStatus{}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status := ExitStatus{Code: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signal = ws.Signal().String()
		}
		return status, nil
	}

	return ExitStatus{Code: -1}, errchain.Tag(errchain.WaitFailed, err)
}
