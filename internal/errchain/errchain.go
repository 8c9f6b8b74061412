// Package errchain provides classified errors that keep their own message
// separate from their cause, so that a failure can be reported to the
// operator one link per line together with the backtrace of its origin.
package errchain

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure of the supervisor.
type Kind int

const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota

	// SpawnFailed means the OS refused to create the child process.
	SpawnFailed

	// StartFailed means the monitor or the supervision loop could not start
	// the child. It always wraps a SpawnFailed cause.
	StartFailed

	// StreamCopyFailed means relaying a child output stream hit an I/O error.
	StreamCopyFailed

	// WaitFailed means the OS wait primitive itself failed after a
	// successful spawn.
	WaitFailed
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case SpawnFailed:
		return "spawn_failed"
	case StartFailed:
		return "start_failed"
	case StreamCopyFailed:
		return "stream_copy_failed"
	case WaitFailed:
		return "wait_failed"
	default:
		return "unknown"
	}
}

// Error is one link of an error chain.
type Error struct {
	Kind  Kind
	msg   string
	cause error
	stack pkgerrors.StackTrace
}

// New returns a chain root with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg, stack: capture()}
}

// Wrap returns a link that describes cause with msg.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause, stack: capture()}
}

// Tag classifies cause without adding a line of its own to the chain.
func Tag(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause, stack: capture()}
}

// Error returns the link's own message. A tag reports its cause.
func (e *Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause.Error()
	}
	return e.msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// StackTrace returns the frames captured when the link was created.
func (e *Error) StackTrace() pkgerrors.StackTrace {
	return e.stack
}

// Is reports whether any link of err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.cause
	}
	return false
}

// Messages returns the chain of err as text, outermost first. Tags are
// skipped. An error that is not an *Error ends the chain, since its message
// already includes whatever it wraps.
func Messages(err error) []string {
	var msgs []string
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			msgs = append(msgs, err.Error())
			break
		}
		if e.msg != "" {
			msgs = append(msgs, e.msg)
		}
		err = e.cause
	}
	return msgs
}

// Backtrace returns the stack of the innermost link that carries one, which
// is the closest to where the failure originated.
func Backtrace(err error) (pkgerrors.StackTrace, bool) {
	var found pkgerrors.StackTrace
	for err != nil {
		e, ok := err.(*Error)
		if !ok {
			break
		}
		if len(e.stack) > 0 {
			found = e.stack
		}
		err = e.cause
	}
	return found, found != nil
}

// Report writes err as an "error:" line followed by one "caused by:" line per
// cause and, if requested and available, a "backtrace:" line.
func Report(w io.Writer, err error, withBacktrace bool) {
	if err == nil {
		return
	}
	msgs := Messages(err)
	if len(msgs) == 0 {
		msgs = []string{err.Error()}
	}
	fmt.Fprintf(w, "error: %s\n", msgs[0])
	for _, msg := range msgs[1:] {
		fmt.Fprintf(w, "caused by: %s\n", msg)
	}
	if !withBacktrace {
		return
	}
	if st, ok := Backtrace(err); ok {
		fmt.Fprintf(w, "backtrace: %+v\n", st)
	}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

var errOrigin = errors.New("origin")

// capture records the caller of the constructor that called it.
func capture() pkgerrors.StackTrace {
	st := pkgerrors.WithStack(errOrigin).(stackTracer).StackTrace()
	// drop capture itself and the constructor
	if len(st) > 2 {
		return st[2:]
	}
	return st
}
