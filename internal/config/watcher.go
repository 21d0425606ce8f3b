package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// ChangeEvent reports that the configuration file changed on disk.
type ChangeEvent struct {
	// Path is the watched file.
	Path string

	// Removed is set when the file was deleted or renamed away.
	Removed bool

	// Time is when the change settled.
	Time time.Time

	// Err carries a watcher failure. Path is empty in that case.
	Err error
}

// Watcher reports changes to a configuration file.
//
// It watches the file's directory rather than the file itself, so editors
// that save by writing a new file and renaming it over the old one are seen.
// Configuration is not reloaded; consumers decide what to do with events.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan ChangeEvent
	debounce time.Duration

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fsWatcher,
		events:   make(chan ChangeEvent, 10),
		debounce: debounce,
		stopped:  make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Events returns the channel that receives change events. It is closed when
// the watcher stops.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start begins watching. The watcher runs until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	go w.run(ctx)
	return nil
}

// Stop closes the watcher and cleans up resources.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopped)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)

	var (
		pending  time.Time
		removed  bool
		debounce = time.NewTicker(w.debounce)
	)
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopped:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				pending = time.Now()
				removed = false
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				pending = time.Now()
				removed = true
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !w.send(ctx, ChangeEvent{Err: err, Time: time.Now()}) {
				return
			}

		case now := <-debounce.C:
			if pending.IsZero() || now.Sub(pending) < w.debounce {
				continue
			}
			event := ChangeEvent{Path: w.path, Removed: removed, Time: now}
			pending = time.Time{}
			if !w.send(ctx, event) {
				return
			}
		}
	}
}

func (w *Watcher) send(ctx context.Context, event ChangeEvent) bool {
	select {
	case w.events <- event:
		return true
	case <-ctx.Done():
		return false
	case <-w.stopped:
		return false
	}
}
