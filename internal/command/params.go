package command

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Parameters holds the current runtime parameter values.
//
// Parameters is safe for concurrent use. Launches should render from a
// Snapshot so a value changing mid-launch cannot produce a mixed command.
type Parameters struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewParameters creates a store seeded with initial values.
func NewParameters(initial map[string]string) *Parameters {
	values := make(map[string]string, len(initial))
	maps.Copy(values, initial)
	return &Parameters{values: values}
}

// Set sets a parameter value.
func (p *Parameters) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Get returns a parameter value.
func (p *Parameters) Get(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[name]
	return v, ok
}

// Delete removes a parameter.
func (p *Parameters) Delete(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, name)
}

// Increment adds delta to an integer parameter and returns the new value.
// A missing parameter counts as zero.
func (p *Parameters) Increment(name string, delta int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := 0
	if v, ok := p.values[name]; ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parameter %q is not an integer: %q", name, v)
		}
		current = n
	}

	current += delta
	p.values[name] = strconv.Itoa(current)
	return current, nil
}

// Snapshot returns a copy of all values.
func (p *Parameters) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}

// String formats the parameters as sorted name=value pairs.
func (p *Parameters) String() string {
	snap := p.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+snap[name])
	}
	return strings.Join(parts, " ")
}
