package process

import (
	"slices"
	"sync"

	"go.uber.org/zap"
)

type lineSub struct {
	id uint64
	fn func(OutputLine)
}

type stateSub struct {
	id uint64
	fn func(StateChange)
}

// subscribers holds OnLine and OnStateChange callbacks keyed by script ID.
type subscribers struct {
	mu     sync.RWMutex
	nextID uint64
	lines  map[string][]lineSub
	states map[string][]stateSub
	logger *zap.Logger
}

func newSubscribers(logger *zap.Logger) *subscribers {
	return &subscribers{
		lines:  make(map[string][]lineSub),
		states: make(map[string][]stateSub),
		logger: logger,
	}
}

func (s *subscribers) addLine(scriptID string, fn func(OutputLine)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.lines[scriptID] = append(s.lines[scriptID], lineSub{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lines[scriptID] = slices.DeleteFunc(s.lines[scriptID], func(sub lineSub) bool {
			return sub.id == id
		})
	}
}

func (s *subscribers) addState(scriptID string, fn func(StateChange)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.states[scriptID] = append(s.states[scriptID], stateSub{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.states[scriptID] = slices.DeleteFunc(s.states[scriptID], func(sub stateSub) bool {
			return sub.id == id
		})
	}
}

func (s *subscribers) emitLine(line OutputLine) {
	s.mu.RLock()
	subs := slices.Clone(s.lines[line.ScriptID])
	s.mu.RUnlock()

	for _, sub := range subs {
		s.call(line.ScriptID, func() { sub.fn(line) })
	}
}

func (s *subscribers) emitState(change StateChange) {
	s.mu.RLock()
	subs := slices.Clone(s.states[change.ScriptID])
	s.mu.RUnlock()

	for _, sub := range subs {
		s.call(change.ScriptID, func() { sub.fn(change) })
	}
}

// call runs a subscriber, recovering panics so a broken subscriber cannot
// take down the relay.
func (s *subscribers) call(scriptID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				zap.String("script", scriptID),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
