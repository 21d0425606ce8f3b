package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/runboard/internal/command"
)

// Defaults for supervisor options.
const (
	DefaultGracePeriod   = 3 * time.Second
	DefaultKillTimeout   = 2 * time.Second
	DefaultDrainTimeout  = 500 * time.Millisecond
	DefaultQueueCapacity = 1024
)

// groupPollInterval is how often a lingering process group is checked.
const groupPollInterval = 20 * time.Millisecond

// Supervisor starts, stops and tracks scripts.
//
// At most one instance per script is active at any time. Start, Stop,
// Restart and Clear for the same script are serialized; a Stop issued while
// a Start is spawning waits for the spawn to finish, then proceeds.
type Supervisor struct {
	mu      sync.RWMutex
	defs    map[string]Definition
	order   []string
	entries map[string]*entry

	subs   *subscribers
	logger *zap.Logger

	gracePeriod   time.Duration
	killTimeout   time.Duration
	drainTimeout  time.Duration
	queueCapacity int
	shell         string

	// Process group signalling.
	terminate func(*os.Process) error
	kill      func(*os.Process) error

	closed atomic.Bool
}

// entry is the per-script slot of the registry.
type entry struct {
	// op serializes start and stop for the script.
	op sync.Mutex

	// current is the latest handle; readable without holding op.
	current atomic.Pointer[Handle]
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithGracePeriod sets how long Stop waits after SIGTERM before SIGKILL.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.gracePeriod = d
		}
	}
}

// WithKillTimeout sets how long Stop waits after SIGKILL before giving up.
func WithKillTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.killTimeout = d
		}
	}
}

// WithDrainTimeout sets how long the output pipes may stay open after the
// process exited, for example because a background child inherited them.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// WithQueueCapacity sets the per-instance output queue bound.
func WithQueueCapacity(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithShell sets the shell used for definitions with Shell enabled.
func WithShell(shell string) Option {
	return func(s *Supervisor) {
		if shell != "" {
			s.shell = shell
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSupervisor creates a supervisor for the given script definitions.
// Definitions with an empty or duplicate ID are ignored; validate them
// before calling.
func NewSupervisor(defs []Definition, opts ...Option) *Supervisor {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	s := &Supervisor{
		defs:          make(map[string]Definition, len(defs)),
		entries:       make(map[string]*entry, len(defs)),
		logger:        zap.NewNop(),
		gracePeriod:   DefaultGracePeriod,
		killTimeout:   DefaultKillTimeout,
		drainTimeout:  DefaultDrainTimeout,
		queueCapacity: DefaultQueueCapacity,
		shell:         shell,
		terminate:     terminateGroup,
		kill:          killGroup,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.subs = newSubscribers(s.logger)

	for _, def := range defs {
		if def.ID == "" {
			continue
		}
		if _, dup := s.defs[def.ID]; dup {
			continue
		}
		s.defs[def.ID] = def
		s.order = append(s.order, def.ID)
	}

	return s
}

// Definitions returns the registered scripts in registration order.
func (s *Supervisor) Definitions() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]Definition, 0, len(s.order))
	for _, id := range s.order {
		defs = append(defs, s.defs[id])
	}
	return defs
}

// Definition returns the definition of a script.
func (s *Supervisor) Definition(scriptID string) (Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[scriptID]
	return def, ok
}

// OnLine registers fn to receive the output of a script, across all of its
// instances. The returned function cancels the subscription.
func (s *Supervisor) OnLine(scriptID string, fn func(OutputLine)) (cancel func()) {
	return s.subs.addLine(scriptID, fn)
}

// OnStateChange registers fn to receive state transitions of a script. The
// returned function cancels the subscription.
func (s *Supervisor) OnStateChange(scriptID string, fn func(StateChange)) (cancel func()) {
	return s.subs.addState(scriptID, fn)
}

// Start renders the script's command with params and starts it.
//
// A *command.MissingParameterError is returned before anything is spawned if
// the template references a parameter not in params.
func (s *Supervisor) Start(scriptID string, params map[string]string) (*Handle, error) {
	def, ok := s.Definition(scriptID)
	if !ok {
		return nil, fmt.Errorf("start %q: %w", scriptID, ErrUnknownScript)
	}

	rendered, err := command.Render(def.Command, params)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", scriptID, err)
	}

	return s.StartCommand(scriptID, rendered)
}

// StartCommand starts a script with an already rendered command.
//
// It fails with *AlreadyRunningError if the script has an active instance,
// and with *SpawnError if the process could not be created; in that case the
// Failed handle remains queryable through Status.
func (s *Supervisor) StartCommand(scriptID, rendered string) (*Handle, error) {
	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	def, ok := s.Definition(scriptID)
	if !ok {
		return nil, fmt.Errorf("start %q: %w", scriptID, ErrUnknownScript)
	}

	e := s.entry(scriptID)
	e.op.Lock()
	defer e.op.Unlock()

	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	if cur := e.current.Load(); cur != nil {
		if state := cur.State(); state.IsActive() {
			return nil, &AlreadyRunningError{ScriptID: scriptID, HandleID: cur.ID, State: state}
		}
	}

	logger := s.logger.With(zap.String("script", scriptID))

	h := newHandle(scriptID, rendered, s.emitState)
	e.current.Store(h)
	h.transition(StateStarting, nil)

	if err := s.spawn(h, def, rendered, logger); err != nil {
		spawnErr := &SpawnError{ScriptID: scriptID, HandleID: h.ID, Command: rendered, Err: err}
		h.transition(StateFailed, func() { h.err = spawnErr })
		logger.Error("spawn failed", zap.String("command", rendered), zap.Error(err))
		return nil, spawnErr
	}

	logger.Info("script started", zap.String("command", rendered), zap.Int("pid", h.PID()))
	return h, nil
}

// spawn creates the OS process for h and starts relaying its output.
func (s *Supervisor) spawn(h *Handle, def Definition, rendered string, logger *zap.Logger) error {
	var (
		argv []string
		err  error
	)
	if def.Shell {
		argv, err = command.ShellArgv(s.shell, rendered)
	} else {
		argv, err = command.Split(rendered)
	}
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = def.Dir
	cmd.Env = buildEnvironment(def.Env)
	setProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return err
	}

	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()

	r := newRelay(h.ScriptID, h.ID, s.queueCapacity, s.subs.emitLine, func(w *OverrunWarning) {
		logger.Warn("subscriber overrun", zap.Int("dropped", w.Dropped))
	})
	h.markRunning(cmd, r)
	r.start(stdoutR, stderrR)

	go s.wait(h, cmd, r, logger)
	return nil
}

// wait reaps the process, drains its output and moves the handle to Stopped.
func (s *Supervisor) wait(h *Handle, cmd *exec.Cmd, r *relay, logger *zap.Logger) {
	waitErr := cmd.Wait()
	exit := exitInfoFrom(cmd.ProcessState)
	h.markExited(exit)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logger.Warn("wait failed", zap.Error(waitErr))
	}

	s.sweepGroup(h, cmd.Process, logger)

	if !r.waitReaders(s.drainTimeout) {
		logger.Warn("output still open after exit, closing pipes", zap.Duration("drain_timeout", s.drainTimeout))
		r.closeReaders()
	}
	r.finish()

	if !h.transition(StateStopped, func() { h.err = r.Err() }) {
		logger.Warn("exit after terminal state", zap.Stringer("state", h.State()), zap.Stringer("exit", exit))
		return
	}

	logger.Info("script exited", zap.Stringer("exit", exit), zap.Bool("clean", exit.Clean()))
}

// sweepGroup ends the processes a script left behind in its process group
// after the leader exited. Left alone they would outlive the dashboard and
// keep the output pipes open.
func (s *Supervisor) sweepGroup(h *Handle, p *os.Process, logger *zap.Logger) {
	if !groupAlive(p) {
		return
	}

	// Stop already used up the grace period.
	if h.State() != StateStopping {
		logger.Info("terminating processes left in group", zap.Int("pgid", p.Pid))
		if err := s.terminate(p); err != nil {
			logger.Warn("terminate group failed", zap.Error(err))
		}
		if waitGroupGone(p, s.gracePeriod) {
			return
		}
	}

	logger.Warn("killing processes left in group", zap.Int("pgid", p.Pid))
	if err := s.kill(p); err != nil {
		logger.Warn("kill group failed", zap.Error(err))
	}
}

// Stop terminates the script's active instance.
//
// Stop is a no-op for scripts that are unknown, never started or already
// terminal. Otherwise it sends SIGTERM to the process group, waits up to the
// grace period, sends SIGKILL and waits up to the kill timeout. If the exit
// still is not confirmed the handle becomes Failed and a *StopTimeoutError is
// returned.
//
// Once the exit is confirmed, output not yet delivered to subscribers is
// discarded and reported as a single Dropped line before EOF. Stop returns
// after the handle is terminal, or ErrOutputPending if delivery did not end
// in time. A script that already exited on its own is not moved to Stopping.
func (s *Supervisor) Stop(scriptID string) error {
	e := s.lookup(scriptID)
	if e == nil {
		return nil
	}

	e.op.Lock()
	defer e.op.Unlock()

	return s.stopLocked(e.current.Load())
}

func (s *Supervisor) stopLocked(h *Handle) error {
	if h == nil || !h.IsActive() {
		return nil
	}

	logger := s.logger.With(zap.String("script", h.ScriptID), zap.Int("pid", h.PID()))

	// Finished on its own; only the output is left.
	if h.hasExited() {
		return s.awaitOutput(h, logger)
	}

	// Lost the race against a natural exit.
	if !h.transition(StateStopping, nil) {
		return nil
	}

	cmd := h.process()
	pid := cmd.Process.Pid
	begin := time.Now()

	if !h.hasExited() {
		if err := s.terminate(cmd.Process); err != nil {
			logger.Warn("terminate failed", zap.Error(err))
		}
	}

	if !waitClosed(h.Exited(), s.gracePeriod) {
		logger.Warn("grace period elapsed, killing", zap.Duration("grace_period", s.gracePeriod))
		if err := s.kill(cmd.Process); err != nil {
			logger.Warn("kill failed", zap.Error(err))
		}

		if !waitClosed(h.Exited(), s.killTimeout) {
			err := &StopTimeoutError{
				ScriptID: h.ScriptID,
				PID:      pid,
				Waited:   time.Since(begin),
				Alive:    pidAlive(pid),
			}
			h.transition(StateFailed, func() { h.err = err })
			logger.Error("stop timed out", zap.Error(err))
			return err
		}
	}

	if err := s.awaitOutput(h, logger); err != nil {
		return err
	}

	logger.Info("script stopped", zap.Duration("took", time.Since(begin)))
	return nil
}

// awaitOutput discards the output of an exited process that subscribers
// have not seen yet and waits for the handle to become terminal.
func (s *Supervisor) awaitOutput(h *Handle, logger *zap.Logger) error {
	if out := h.output(); out != nil {
		if n := out.discard(); n > 0 {
			logger.Info("discarded undelivered output", zap.Int("lines", n))
		}
	}

	if !waitClosed(h.Done(), s.gracePeriod+s.drainTimeout+s.killTimeout) {
		logger.Error("output relay still delivering after exit")
		return fmt.Errorf("stop %q: %w", h.ScriptID, ErrOutputPending)
	}
	return nil
}

// waitGroupGone waits up to timeout for the process group led by p to empty.
func waitGroupGone(p *os.Process, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for groupAlive(p) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(groupPollInterval)
	}
	return true
}

// Restart stops the script if it is active and starts it again with params.
func (s *Supervisor) Restart(scriptID string, params map[string]string) (*Handle, error) {
	if err := s.Stop(scriptID); err != nil {
		return nil, err
	}
	return s.Start(scriptID, params)
}

// Status returns a snapshot of the script's latest instance. ok is false if
// the script has no instance; the snapshot then reports StateIdle.
func (s *Supervisor) Status(scriptID string) (snap Snapshot, ok bool) {
	h := s.Handle(scriptID)
	if h == nil {
		return Snapshot{ScriptID: scriptID, State: StateIdle}, false
	}
	return h.Snapshot(), true
}

// Handle returns the script's latest instance, or nil.
func (s *Supervisor) Handle(scriptID string) *Handle {
	e := s.lookup(scriptID)
	if e == nil {
		return nil
	}
	return e.current.Load()
}

// Clear forgets the script's terminal instance.
func (s *Supervisor) Clear(scriptID string) error {
	e := s.lookup(scriptID)
	if e == nil {
		return nil
	}

	e.op.Lock()
	defer e.op.Unlock()

	if h := e.current.Load(); h != nil {
		if h.IsActive() {
			return fmt.Errorf("clear %q: %w", scriptID, ErrStillActive)
		}
		e.current.Store(nil)
	}
	return nil
}

// Active returns the IDs of scripts with an active instance, sorted.
func (s *Supervisor) Active() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, e := range s.entries {
		if h := e.current.Load(); h != nil && h.IsActive() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ShutdownAll stops every active instance in parallel and waits for all of
// them. Further starts fail with ErrSupervisorShutdown. Stop timeouts are
// combined into the returned error.
func (s *Supervisor) ShutdownAll() error {
	s.closed.Store(true)

	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Stop(id); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if errs != nil {
		s.logger.Error("shutdown incomplete", zap.Error(errs))
	} else {
		s.logger.Info("all scripts stopped", zap.Int("scripts", len(ids)))
	}
	return errs
}

// IsShuttingDown reports whether ShutdownAll was called.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

func (s *Supervisor) emitState(change StateChange) {
	s.logger.Debug("state changed",
		zap.String("script", change.ScriptID),
		zap.String("handle", change.HandleID),
		zap.Stringer("from", change.Old),
		zap.Stringer("to", change.New),
	)
	s.subs.emitState(change)
}

func (s *Supervisor) entry(scriptID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[scriptID]
	if !ok {
		e = &entry{}
		s.entries[scriptID] = e
	}
	return e
}

func (s *Supervisor) lookup(scriptID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[scriptID]
}

// buildEnvironment layers extra over the inherited environment. A nil result
// makes the child inherit the environment unchanged.
func buildEnvironment(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// waitClosed waits up to timeout for ch to be closed.
func waitClosed(ch <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
