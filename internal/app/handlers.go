package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/runboard/internal/renderer/backend"
)

// handleEvent processes a backend event. Returns ErrQuit if the application
// should exit.
func (a *Application) handleEvent(ev backend.Event) error {
	switch ev.Type {
	case backend.EventKey:
		return a.Do(a.keymap.Lookup(ev))
	case backend.EventMouse:
		a.handleMouse(ev)
	case backend.EventResize:
		a.backend.Sync()
	}
	return nil
}

// Do performs a dashboard action on the focused script. Script operations
// run in the background and report back through the event loop. Returns
// ErrQuit for ActionQuit.
func (a *Application) Do(action Action) error {
	p := a.Focused()

	switch action {
	case ActionQuit:
		return ErrQuit

	case ActionFocusNext:
		a.moveFocus(1)
	case ActionFocusPrev:
		a.moveFocus(-1)

	case ActionStart:
		a.startScript(p.ID())
	case ActionStop:
		a.stopScript(p.ID())
	case ActionRestart:
		a.restartScript(p.ID())

	case ActionClear:
		p.Clear()
		if err := a.sup.Clear(p.ID()); err == nil {
			snap, _ := a.sup.Status(p.ID())
			p.SetSnapshot(snap)
		}

	case ActionCounterUp:
		a.bumpCounter(1)
	case ActionCounterDown:
		a.bumpCounter(-1)

	case ActionScrollUp:
		p.Scroll(a.pageSize())
	case ActionScrollDown:
		p.Scroll(-a.pageSize())
	case ActionScrollTop:
		p.ScrollTop()
	case ActionScrollBottom:
		p.ScrollBottom()

	case ActionRedraw:
		a.backend.Sync()
	}
	return nil
}

func (a *Application) moveFocus(delta int) {
	n := int32(len(a.panels))
	a.focus.Store(((a.focus.Load()+int32(delta))%n + n) % n)
}

func (a *Application) bumpCounter(delta int) {
	name := a.cfg.UI.Counter
	if name == "" {
		return
	}
	v, err := a.params.Increment(name, delta)
	if err != nil {
		a.setStatus(err.Error())
		a.backend.Beep()
		return
	}
	a.setStatus(fmt.Sprintf("%s=%d", name, v))
}

func (a *Application) startScript(scriptID string) {
	params := a.params.Snapshot()
	a.async(func() error {
		if _, err := a.sup.Start(scriptID, params); err != nil {
			return NewOperationError("start", scriptID, err)
		}
		return nil
	}, scriptID)
}

func (a *Application) stopScript(scriptID string) {
	a.async(func() error {
		if err := a.sup.Stop(scriptID); err != nil {
			return NewOperationError("stop", scriptID, err)
		}
		return nil
	}, scriptID)
}

func (a *Application) restartScript(scriptID string) {
	params := a.params.Snapshot()
	a.async(func() error {
		if err := a.sup.Stop(scriptID); err != nil {
			return NewOperationError("stop", scriptID, err).WithContext("restart")
		}
		if _, err := a.sup.Start(scriptID, params); err != nil {
			return NewOperationError("start", scriptID, err).WithContext("restart")
		}
		return nil
	}, scriptID)
}

// async runs fn off the event loop and posts its result back.
func (a *Application) async(fn func() error, scriptID string) {
	a.actions.Add(1)
	go func() {
		defer a.actions.Done()
		err := fn()
		if err != nil {
			a.logger.Debug("script action failed", zap.String("script", scriptID), zap.Error(err))
		}
		a.post(actionResult{scriptID: scriptID, err: err})
	}()
}

// handleMouse focuses the clicked panel and scrolls on wheel events.
func (a *Application) handleMouse(ev backend.Event) {
	i, ok := a.panelAt(ev.MouseX, ev.MouseY)
	if !ok {
		return
	}
	p := a.panels[i]

	switch ev.MouseButton {
	case backend.MouseLeft:
		a.focus.Store(int32(i))
	case backend.MouseWheelUp:
		p.Scroll(3)
	case backend.MouseWheelDown:
		p.Scroll(-3)
	}
}

// pageSize is the number of lines a page scroll moves the focused panel.
func (a *Application) pageSize() int {
	i := int(a.focus.Load())
	if i < len(a.regions) {
		if h := a.regions[i].body.Height(); h > 1 {
			return h - 1
		}
	}
	return 1
}
