package process

import (
	"fmt"
	"time"
)

// State represents the lifecycle state of a script instance.
type State int

const (
	// StateIdle means no instance exists. It is only reported for scripts
	// that were never started (or were cleared) and as the previous state of
	// a new handle's first transition.
	StateIdle State = iota
	// StateStarting indicates the process is being spawned.
	StateStarting
	// StateRunning indicates the OS confirmed the process started.
	StateRunning
	// StateStopping indicates a stop was requested and termination is in progress.
	StateStopping
	// StateStopped indicates the process exited, on its own or after a stop.
	StateStopped
	// StateFailed indicates the spawn failed or termination could not be confirmed.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsActive reports whether the state blocks a new start.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// transitions lists the allowed state changes.
var transitions = map[State][]State{
	StateIdle:     {StateStarting},
	StateStarting: {StateRunning, StateFailed},
	StateRunning:  {StateStopping, StateStopped},
	StateStopping: {StateStopped, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Stream identifies the source stream of an output line.
type Stream int

const (
	// StreamStdout is standard output.
	StreamStdout Stream = iota
	// StreamStderr is standard error.
	StreamStderr
)

// String returns the stream name.
func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// LineKind distinguishes output text from relay markers.
type LineKind int

const (
	// LineText carries one line of process output.
	LineText LineKind = iota
	// LineDropped reports lines discarded because subscribers fell behind.
	LineDropped
	// LineEOF is the last line delivered for a handle.
	LineEOF
)

// String returns the kind name.
func (k LineKind) String() string {
	switch k {
	case LineText:
		return "text"
	case LineDropped:
		return "dropped"
	case LineEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// OutputLine is one event delivered to OnLine subscribers.
type OutputLine struct {
	// ScriptID is the script that produced the line.
	ScriptID string

	// HandleID identifies the instance that produced the line.
	HandleID string

	// Kind tells text lines apart from markers.
	Kind LineKind

	// Stream is the source stream. Only meaningful for LineText.
	Stream Stream

	// Text is the line content without its newline terminator. For
	// LineDropped it holds the overrun warning message.
	Text string

	// Dropped is the number of lines discarded, for LineDropped.
	Dropped int

	// Sequence numbers delivered lines of a handle from 1 without gaps.
	Sequence uint64

	// Time is when the line was read (or the marker created).
	Time time.Time
}

// ExitInfo describes how a process ended.
type ExitInfo struct {
	// Code is the exit code, or -1 if the process was killed by a signal.
	Code int

	// Signaled is true if the process was terminated by a signal.
	Signaled bool

	// Signal names the terminating signal when Signaled is true.
	Signal string
}

// Clean reports whether the process exited with code 0.
func (e ExitInfo) Clean() bool {
	return !e.Signaled && e.Code == 0
}

// String formats the exit status like "exit 1" or "signal terminated".
func (e ExitInfo) String() string {
	if e.Signaled {
		return "signal " + e.Signal
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// StateChange is delivered to OnStateChange subscribers.
type StateChange struct {
	ScriptID string
	HandleID string
	Old      State
	New      State

	// Exit is set once the new state is terminal and the process ran.
	Exit *ExitInfo

	// Err carries a spawn failure, stop timeout or output read error.
	Err error
}

// Snapshot is a point-in-time copy of a handle.
type Snapshot struct {
	ScriptID string
	HandleID string
	Command  string
	State    State
	PID      int
	Started  time.Time
	Ended    time.Time
	Exit     *ExitInfo
	Err      error
}

// Runtime returns how long the instance ran, or has been running.
func (s Snapshot) Runtime() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if s.Ended.IsZero() {
		return time.Since(s.Started)
	}
	return s.Ended.Sub(s.Started)
}
