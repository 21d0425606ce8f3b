package app

import "github.com/dshills/runboard/internal/renderer/backend"

// Action is a dashboard command bound to a key.
type Action int

// Dashboard actions.
const (
	ActionNone Action = iota
	ActionQuit
	ActionFocusNext
	ActionFocusPrev
	ActionStart
	ActionStop
	ActionRestart
	ActionClear
	ActionCounterUp
	ActionCounterDown
	ActionScrollUp
	ActionScrollDown
	ActionScrollTop
	ActionScrollBottom
	ActionRedraw
)

// Binding maps a key to an action.
type Binding struct {
	Key    backend.Key
	Rune   rune // only for backend.KeyRune
	Action Action
}

// DefaultBindings is the dashboard key map.
var DefaultBindings = []Binding{
	{Key: backend.KeyTab, Action: ActionFocusNext},
	{Key: backend.KeyDown, Action: ActionFocusNext},
	{Key: backend.KeyBacktab, Action: ActionFocusPrev},
	{Key: backend.KeyUp, Action: ActionFocusPrev},

	{Key: backend.KeyEnter, Action: ActionStart},
	{Key: backend.KeyRune, Rune: 's', Action: ActionStart},
	{Key: backend.KeyRune, Rune: 'x', Action: ActionStop},
	{Key: backend.KeyRune, Rune: 'r', Action: ActionRestart},

	{Key: backend.KeyCtrlK, Action: ActionClear},
	{Key: backend.KeyRune, Rune: 'c', Action: ActionClear},

	{Key: backend.KeyRune, Rune: '+', Action: ActionCounterUp},
	{Key: backend.KeyRune, Rune: '=', Action: ActionCounterUp},
	{Key: backend.KeyRune, Rune: '-', Action: ActionCounterDown},

	{Key: backend.KeyPageUp, Action: ActionScrollUp},
	{Key: backend.KeyPageDown, Action: ActionScrollDown},
	{Key: backend.KeyHome, Action: ActionScrollTop},
	{Key: backend.KeyEnd, Action: ActionScrollBottom},

	{Key: backend.KeyCtrlL, Action: ActionRedraw},

	{Key: backend.KeyRune, Rune: 'q', Action: ActionQuit},
	{Key: backend.KeyCtrlC, Action: ActionQuit},
	{Key: backend.KeyCtrlQ, Action: ActionQuit},
}

// Keymap resolves key events to actions.
type Keymap struct {
	keys  map[backend.Key]Action
	runes map[rune]Action
}

// NewKeymap builds a keymap. Later bindings override earlier ones.
func NewKeymap(bindings []Binding) *Keymap {
	km := &Keymap{
		keys:  make(map[backend.Key]Action),
		runes: make(map[rune]Action),
	}
	for _, b := range bindings {
		if b.Key == backend.KeyRune {
			km.runes[b.Rune] = b.Action
		} else {
			km.keys[b.Key] = b.Action
		}
	}
	return km
}

// Lookup returns the action bound to ev, or ActionNone.
func (km *Keymap) Lookup(ev backend.Event) Action {
	if ev.Type != backend.EventKey {
		return ActionNone
	}
	if ev.Key == backend.KeyRune {
		return km.runes[ev.Rune]
	}
	return km.keys[ev.Key]
}
