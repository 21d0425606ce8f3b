package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/runboard/internal/renderer/backend"
)

func TestKeymapLookup(t *testing.T) {
	km := NewKeymap(DefaultBindings)

	tests := []struct {
		name string
		ev   backend.Event
		want Action
	}{
		{"tab", backend.Event{Type: backend.EventKey, Key: backend.KeyTab}, ActionFocusNext},
		{"backtab", backend.Event{Type: backend.EventKey, Key: backend.KeyBacktab, Mod: backend.ModShift}, ActionFocusPrev},
		{"enter", backend.Event{Type: backend.EventKey, Key: backend.KeyEnter}, ActionStart},
		{"s", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 's'}, ActionStart},
		{"x", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'x'}, ActionStop},
		{"r", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'r'}, ActionRestart},
		{"ctrl-k", backend.Event{Type: backend.EventKey, Key: backend.KeyCtrlK}, ActionClear},
		{"plus", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: '+'}, ActionCounterUp},
		{"minus", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: '-'}, ActionCounterDown},
		{"pgup", backend.Event{Type: backend.EventKey, Key: backend.KeyPageUp}, ActionScrollUp},
		{"end", backend.Event{Type: backend.EventKey, Key: backend.KeyEnd}, ActionScrollBottom},
		{"q", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'q'}, ActionQuit},
		{"ctrl-c", backend.Event{Type: backend.EventKey, Key: backend.KeyCtrlC}, ActionQuit},
		{"unbound rune", backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'z'}, ActionNone},
		{"not a key", backend.Event{Type: backend.EventResize, Key: backend.KeyTab}, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, km.Lookup(tt.ev))
		})
	}
}

func TestKeymapOverride(t *testing.T) {
	bindings := append([]Binding{}, DefaultBindings...)
	bindings = append(bindings, Binding{Key: backend.KeyRune, Rune: 'q', Action: ActionNone})

	km := NewKeymap(bindings)
	assert.Equal(t, ActionNone, km.Lookup(backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: 'q'}))
	assert.Equal(t, ActionQuit, km.Lookup(backend.Event{Type: backend.EventKey, Key: backend.KeyCtrlQ}))
}
