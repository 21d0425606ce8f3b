package process

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/runboard/internal/command"
)

// Sentinel errors.
var (
	// ErrUnknownScript is returned when a script ID has no definition.
	ErrUnknownScript = errors.New("unknown script")

	// ErrSupervisorShutdown is returned when starting after ShutdownAll began.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")

	// ErrStillActive is returned when clearing a script that is still active.
	ErrStillActive = errors.New("script is still active")

	// ErrOutputPending is returned by Stop when the process exited but its
	// output was not fully delivered in time. The handle is still active.
	ErrOutputPending = errors.New("output still being delivered")

	// ErrEmptyCommand is returned when a rendered command has nothing to run.
	ErrEmptyCommand = command.ErrEmptyCommand
)

// AlreadyRunningError is returned by Start when the script has an active
// instance. The existing instance is not affected.
type AlreadyRunningError struct {
	ScriptID string
	HandleID string
	State    State
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("script %q is already %s", e.ScriptID, e.State)
}

// SpawnError is returned when the OS refused to create the process. The
// failed handle stays registered and can be inspected with Status.
type SpawnError struct {
	ScriptID string
	HandleID string
	Command  string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q for script %q: %v", e.Command, e.ScriptID, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// StopTimeoutError is returned when a process did not exit after SIGKILL
// within the kill timeout. The handle is marked Failed and the process may
// still be alive.
type StopTimeoutError struct {
	ScriptID string
	PID      int
	Waited   time.Duration

	// Alive reports whether the PID still existed when the error was raised.
	Alive bool
}

func (e *StopTimeoutError) Error() string {
	status := "exit not confirmed"
	if e.Alive {
		status = "process may be leaked"
	}
	return fmt.Sprintf("stop script %q (pid %d): no exit after %s, %s", e.ScriptID, e.PID, e.Waited, status)
}

// OverrunWarning reports output lines dropped because subscribers could not
// keep up. It is informational; the process is unaffected.
type OverrunWarning struct {
	ScriptID string
	Dropped  int
}

func (e *OverrunWarning) Error() string {
	return fmt.Sprintf("%d lines dropped: output of %q arrived faster than it was displayed", e.Dropped, e.ScriptID)
}
