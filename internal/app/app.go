// Package app implements the runboard dashboard. It wires the configuration,
// the process supervisor and the terminal backend together and runs the
// single-threaded UI event loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/runboard/internal/command"
	"github.com/dshills/runboard/internal/config"
	"github.com/dshills/runboard/internal/process"
	"github.com/dshills/runboard/internal/renderer/backend"
)

const (
	// DefaultStatsInterval is how often running scripts are sampled.
	DefaultStatsInterval = time.Second

	// inboxSize bounds the messages queued from supervisor callbacks.
	inboxSize = 1024

	// maxBatch is how many queued messages are applied per redraw.
	maxBatch = 256
)

// Application is the dashboard: one panel per configured script.
type Application struct {
	cfg     *config.Config
	sup     *process.Supervisor
	params  *command.Parameters
	backend backend.Backend
	logger  *zap.Logger
	watcher *config.Watcher
	keymap  *Keymap

	statsInterval time.Duration

	// Owned by the event loop.
	panels  []*Panel
	index   map[string]int
	focus   atomic.Int32
	status  string
	regions []panelRegion

	inbox    chan message
	quit     chan struct{}
	quitOnce sync.Once
	running  atomic.Bool
	cancels  []func()
	actions  sync.WaitGroup
}

// message is an update delivered to the event loop.
type message any

type lineMessage struct{ line process.OutputLine }

type stateMessage struct{ change process.StateChange }

type actionResult struct {
	scriptID string
	err      error
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Application) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWatcher shows a notice when the configuration file changes.
func WithWatcher(w *config.Watcher) Option {
	return func(a *Application) {
		a.watcher = w
	}
}

// WithParameters replaces the parameter store seeded from the configuration.
func WithParameters(params *command.Parameters) Option {
	return func(a *Application) {
		if params != nil {
			a.params = params
		}
	}
}

// WithStatsInterval sets how often running scripts are sampled.
func WithStatsInterval(d time.Duration) Option {
	return func(a *Application) {
		if d > 0 {
			a.statsInterval = d
		}
	}
}

// WithKeymap replaces the default key bindings.
func WithKeymap(km *Keymap) Option {
	return func(a *Application) {
		if km != nil {
			a.keymap = km
		}
	}
}

// New creates the dashboard for the scripts known to sup.
func New(cfg *config.Config, sup *process.Supervisor, b backend.Backend, opts ...Option) (*Application, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	if cfg == nil {
		cfg = config.Default()
	}

	defs := sup.Definitions()
	if len(defs) == 0 {
		return nil, ErrNoScripts
	}

	a := &Application{
		cfg:           cfg,
		sup:           sup,
		params:        command.NewParameters(cfg.Params),
		backend:       b,
		logger:        zap.NewNop(),
		keymap:        NewKeymap(DefaultBindings),
		statsInterval: DefaultStatsInterval,
		index:         make(map[string]int, len(defs)),
		inbox:         make(chan message, inboxSize),
		quit:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	for i, def := range defs {
		a.panels = append(a.panels, NewPanel(def, cfg.UI.Scrollback))
		a.index[def.ID] = i
	}
	a.panels[0].Append(fmt.Sprintf("Welcome to %s!", cfg.Title), styleInfo)

	return a, nil
}

// Params returns the runtime parameters.
func (a *Application) Params() *command.Parameters {
	return a.params
}

// Panels returns the panels in display order.
func (a *Application) Panels() []*Panel {
	return a.panels
}

// Panel returns the panel of a script, or nil.
func (a *Application) Panel(scriptID string) *Panel {
	if i, ok := a.index[scriptID]; ok {
		return a.panels[i]
	}
	return nil
}

// Focused returns the focused panel.
func (a *Application) Focused() *Panel {
	return a.panels[a.focus.Load()]
}

// IsRunning returns true while Run is executing.
func (a *Application) IsRunning() bool {
	return a.running.Load()
}

// Quit asks the event loop to exit. It is safe to call from any goroutine
// and more than once.
func (a *Application) Quit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Run initializes the backend and runs the event loop until Quit is called,
// a quit key is pressed, the backend closes or ctx is done. Every running
// script is stopped before the terminal is restored.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	if err := a.backend.Init(); err != nil {
		return &InitError{Component: "backend", Err: err}
	}
	defer a.backend.Shutdown()

	a.subscribe()
	defer a.unsubscribe()

	var changes <-chan config.ChangeEvent
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			a.logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			changes = a.watcher.Events()
			defer a.watcher.Stop()
		}
	}

	events := make(chan backend.Event)
	go a.pollEvents(events)

	ticker := time.NewTicker(a.statsInterval)
	defer ticker.Stop()

	a.logger.Info("dashboard started", zap.Int("scripts", len(a.panels)))
	a.render()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-a.quit:
			break loop

		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if err := a.handleEvent(ev); errors.Is(err, ErrQuit) {
				break loop
			}

		case msg := <-a.inbox:
			a.apply(msg)
			a.drainInbox()

		case <-ticker.C:
			a.sampleUsage()

		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			a.configChanged(change)
		}
		a.render()
	}

	return a.shutdown()
}

// shutdown stops every script. It runs before the backend is restored so
// the terminal stays owned until the children are gone.
func (a *Application) shutdown() error {
	a.Quit()
	a.setStatus("stopping scripts...")
	a.render()

	err := a.sup.ShutdownAll()
	a.actions.Wait()
	if err != nil {
		a.logger.Error("shutdown left scripts running", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("dashboard stopped")
	return nil
}

// pollEvents forwards backend events until the backend closes or the
// application quits.
func (a *Application) pollEvents(out chan<- backend.Event) {
	defer close(out)
	for {
		ev := a.backend.PollEvent()
		if ev.Type == backend.EventClosed {
			return
		}
		select {
		case out <- ev:
		case <-a.quit:
			return
		}
	}
}

func (a *Application) subscribe() {
	for _, p := range a.panels {
		a.cancels = append(a.cancels,
			a.sup.OnLine(p.ID(), func(line process.OutputLine) {
				a.post(lineMessage{line: line})
			}),
			a.sup.OnStateChange(p.ID(), func(change process.StateChange) {
				a.post(stateMessage{change: change})
			}),
		)
	}
}

func (a *Application) unsubscribe() {
	for _, cancel := range a.cancels {
		cancel()
	}
	a.cancels = nil
}

// post queues msg for the event loop. It gives up once the application
// quits so supervisor callbacks never block shutdown.
func (a *Application) post(msg message) {
	select {
	case a.inbox <- msg:
	case <-a.quit:
	}
}

func (a *Application) drainInbox() {
	for range maxBatch {
		select {
		case msg := <-a.inbox:
			a.apply(msg)
		default:
			return
		}
	}
}

func (a *Application) apply(msg message) {
	switch m := msg.(type) {
	case lineMessage:
		a.applyLine(m.line)
	case stateMessage:
		a.applyState(m.change)
	case actionResult:
		a.applyResult(m)
	}
}

func (a *Application) applyLine(line process.OutputLine) {
	p := a.Panel(line.ScriptID)
	if p == nil {
		return
	}
	switch line.Kind {
	case process.LineText:
		style := styleOutput
		if line.Stream == process.StreamStderr {
			style = styleStderr
		}
		p.Append(line.Text, style)
	case process.LineDropped:
		p.Append(fmt.Sprintf("[%d lines dropped]", line.Dropped), styleDropped)
	}
}

func (a *Application) applyState(change process.StateChange) {
	p := a.Panel(change.ScriptID)
	if p == nil {
		return
	}
	if snap, ok := a.sup.Status(change.ScriptID); ok {
		p.SetSnapshot(snap)
	}

	name := p.Name()
	switch change.New {
	case process.StateRunning:
		p.Append(name+" launched successfully!", styleSuccess)

	case process.StateStopped:
		exit := "exit unknown"
		if change.Exit != nil {
			exit = change.Exit.String()
		}
		if change.Old == process.StateStopping {
			p.Append(fmt.Sprintf("%s stopped (%s).", name, exit), styleWarning)
		} else {
			p.Append(fmt.Sprintf("%s process finished (%s).", name, exit), styleWarning)
		}
		if change.Err != nil {
			p.Append("Output error: "+change.Err.Error(), styleFailure)
		}

	case process.StateFailed:
		if change.Old == process.StateStopping {
			p.Append(fmt.Sprintf("Error stopping %s: %v", name, change.Err), styleFailure)
		} else {
			p.Append(fmt.Sprintf("Failed to launch %s: %v", name, change.Err), styleFailure)
		}
	}
}

// applyResult reports action errors not already shown by state changes.
func (a *Application) applyResult(r actionResult) {
	if r.err == nil {
		return
	}
	a.logger.Warn("action failed", zap.String("script", r.scriptID), zap.Error(r.err))

	var spawnErr *process.SpawnError
	var stopErr *process.StopTimeoutError
	if errors.As(r.err, &spawnErr) || errors.As(r.err, &stopErr) {
		return
	}

	var running *process.AlreadyRunningError
	if errors.As(r.err, &running) {
		a.setStatus(fmt.Sprintf("%s is already %s", r.scriptID, running.State))
		a.backend.Beep()
		return
	}

	if p := a.Panel(r.scriptID); p != nil {
		var opErr *OperationError
		if errors.As(r.err, &opErr) && opErr.Op != "stop" {
			p.Append(fmt.Sprintf("Failed to launch %s: %v", p.Name(), opErr.Err), styleFailure)
			return
		}
		p.Append(r.err.Error(), styleFailure)
	}
}

// sampleUsage refreshes status and resource usage of active scripts.
func (a *Application) sampleUsage() {
	for _, p := range a.panels {
		h := a.sup.Handle(p.ID())
		if h == nil || !h.IsActive() {
			continue
		}
		p.SetSnapshot(h.Snapshot())
		usage, err := h.Usage()
		if err != nil {
			a.logger.Debug("usage sample failed", zap.String("script", p.ID()), zap.Error(err))
			continue
		}
		p.SetUsage(usage)
	}
}

func (a *Application) configChanged(change config.ChangeEvent) {
	if change.Err != nil {
		a.logger.Warn("config watcher error", zap.Error(change.Err))
		return
	}
	a.logger.Info("configuration changed on disk", zap.String("path", change.Path), zap.Bool("removed", change.Removed))
	if change.Removed {
		a.setStatus("configuration file removed")
		return
	}
	a.setStatus("configuration changed on disk; restart to apply")
}

func (a *Application) setStatus(msg string) {
	a.status = msg
}
