package process

import (
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle tracks one instance of a script.
//
// Handles are created by the Supervisor. All methods are safe for concurrent
// use, and querying a terminal handle has no side effects.
type Handle struct {
	// ID uniquely identifies this instance.
	ID string

	// ScriptID is the script this instance belongs to.
	ScriptID string

	// Command is the rendered command line.
	Command string

	mu      sync.RWMutex
	state   State
	pid     int
	started time.Time
	ended   time.Time
	exit    *ExitInfo
	err     error
	cmd     *exec.Cmd
	out     *relay

	// emitMu keeps state change notifications in transition order.
	emitMu sync.Mutex
	notify func(StateChange)

	exited     chan struct{}
	exitedOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
}

func newHandle(scriptID, command string, notify func(StateChange)) *Handle {
	if notify == nil {
		notify = func(StateChange) {}
	}
	return &Handle{
		ID:       uuid.New().String(),
		ScriptID: scriptID,
		Command:  command,
		state:    StateIdle,
		notify:   notify,
		exited:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// IsActive reports whether the instance is starting, running or stopping.
func (h *Handle) IsActive() bool {
	return h.State().IsActive()
}

// PID returns the OS process ID while the process runs, 0 otherwise.
func (h *Handle) PID() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state.IsTerminal() {
		return 0
	}
	return h.pid
}

// ExitInfo returns how the process ended. ok is false until it has.
func (h *Handle) ExitInfo() (info ExitInfo, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.exit == nil {
		return ExitInfo{}, false
	}
	return *h.exit, true
}

// Err returns the error recorded for the instance, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Done returns a channel that is closed once the handle reaches a terminal
// state. State change subscribers have been notified by then.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited returns a channel that is closed when the OS reports the process
// exited. Output may still be draining.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// Snapshot returns a copy of the handle's current state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := Snapshot{
		ScriptID: h.ScriptID,
		HandleID: h.ID,
		Command:  h.Command,
		State:    h.state,
		Started:  h.started,
		Ended:    h.ended,
		Err:      h.err,
	}
	if !h.state.IsTerminal() {
		snap.PID = h.pid
	}
	if h.exit != nil {
		exit := *h.exit
		snap.Exit = &exit
	}
	return snap
}

// transition moves the handle to state to, applying mutate under the state
// lock. It returns false, and changes nothing, if the move is not allowed.
func (h *Handle) transition(to State, mutate func()) bool {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	from := h.state
	if !canTransition(from, to) {
		h.mu.Unlock()
		return false
	}
	h.state = to
	if mutate != nil {
		mutate()
	}
	if to.IsTerminal() && h.ended.IsZero() {
		h.ended = time.Now()
	}
	change := StateChange{
		ScriptID: h.ScriptID,
		HandleID: h.ID,
		Old:      from,
		New:      to,
		Err:      h.err,
	}
	if to.IsTerminal() && h.exit != nil {
		exit := *h.exit
		change.Exit = &exit
	}
	h.mu.Unlock()

	h.notify(change)

	if to.IsTerminal() {
		h.doneOnce.Do(func() { close(h.done) })
	}
	return true
}

// markRunning records a successful spawn.
func (h *Handle) markRunning(cmd *exec.Cmd, out *relay) bool {
	return h.transition(StateRunning, func() {
		h.cmd = cmd
		h.out = out
		h.pid = cmd.Process.Pid
		h.started = time.Now()
	})
}

// markExited records the exit status reported by the OS. It does not change
// the state: the relay still has to drain.
func (h *Handle) markExited(info ExitInfo) {
	h.mu.Lock()
	h.exit = &info
	h.ended = time.Now()
	h.mu.Unlock()

	h.exitedOnce.Do(func() { close(h.exited) })
}

// hasExited reports whether the OS already reported the exit.
func (h *Handle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

func (h *Handle) process() *exec.Cmd {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cmd
}

func (h *Handle) output() *relay {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.out
}
