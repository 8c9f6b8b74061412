// Package supervisor runs the restart-forever loop around the OpenVPN child.
package supervisor

// State represents the current phase of the supervision loop.
type State int

const (
	// StateStarting indicates the child process is being spawned.
	StateStarting State = iota

	// StateRunning indicates the child is running and the loop is waiting
	// for its termination outcome.
	StateRunning

	// StateWaiting indicates the loop is sleeping the fixed restart delay.
	StateWaiting

	// StateStopped indicates the loop has returned.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true while the loop is cycling.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateWaiting
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
