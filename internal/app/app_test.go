//go:build unix

package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	psprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/runboard/internal/config"
	"github.com/dshills/runboard/internal/process"
	"github.com/dshills/runboard/internal/renderer/backend"
	"github.com/dshills/runboard/internal/renderer/core"
)

const waitTimeout = 10 * time.Second

func newTestApp(t *testing.T, scripts ...config.ScriptConfig) (*Application, *backend.NullBackend, *process.Supervisor) {
	t.Helper()

	cfg := config.Default()
	cfg.Title = "Aloha Console"
	cfg.Params = map[string]string{"episode": "1"}
	cfg.Scripts = scripts
	cfg.Supervisor.GracePeriod = 500 * time.Millisecond
	cfg.Supervisor.DrainTimeout = 200 * time.Millisecond
	cfg.Supervisor.Shell = "/bin/sh"

	sup := process.NewSupervisor(cfg.Definitions(), cfg.Supervisor.Options()...)
	t.Cleanup(func() { _ = sup.ShutdownAll() })

	b := backend.NewNullBackend(160, 24)
	a, err := New(cfg, sup, b, WithStatsInterval(50*time.Millisecond))
	require.NoError(t, err)
	return a, b, sup
}

// runApp runs the dashboard in the background and returns its result.
func runApp(t *testing.T, a *Application) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- a.Run(context.Background())
	}()

	require.Eventually(t, a.IsRunning, waitTimeout, 5*time.Millisecond)
	t.Cleanup(func() {
		a.Quit()
		select {
		case <-finished:
		case <-time.After(waitTimeout):
			t.Error("Run did not return after Quit")
		}
	})
	return done
}

func press(b *backend.NullBackend, r rune) {
	b.PostEvent(backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: r})
}

func pressKey(b *backend.NullBackend, k backend.Key) {
	b.PostEvent(backend.Event{Type: backend.EventKey, Key: k})
}

func waitForPanel(t *testing.T, p *Panel, text string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, line := range p.Texts() {
			if strings.Contains(line, text) {
				return true
			}
		}
		return false
	}, waitTimeout, 10*time.Millisecond, "panel %q never showed %q; has %q", p.ID(), text, p.Texts())
}

func waitForScreen(t *testing.T, b *backend.NullBackend, text string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(b.Text(), text)
	}, waitTimeout, 10*time.Millisecond, "screen never showed %q", text)
}

func TestNewRequiresBackendAndScripts(t *testing.T) {
	sup := process.NewSupervisor(nil)

	_, err := New(config.Default(), sup, nil)
	assert.ErrorIs(t, err, ErrNoBackend)

	_, err = New(config.Default(), sup, backend.NewNullBackend(10, 10))
	assert.ErrorIs(t, err, ErrNoScripts)
}

func TestApplicationWelcomeAndHeader(t *testing.T) {
	a, b, _ := newTestApp(t,
		config.ScriptConfig{ID: "core", Name: "Aloha Core", Command: "echo ${episode}"},
		config.ScriptConfig{ID: "sim", Command: "echo sim"},
	)

	assert.Equal(t, []string{"Welcome to Aloha Console!"}, a.Panel("core").Texts())
	assert.Empty(t, a.Panel("sim").Texts())

	runApp(t, a)
	waitForScreen(t, b, "Welcome to Aloha Console!")

	header := b.Row(0)
	assert.Contains(t, header, "Aloha Console")
	assert.Contains(t, header, "episode=1")
	assert.Contains(t, b.Text(), "Aloha Core [idle]")
	assert.Contains(t, b.Text(), "sim [idle]")
	assert.Contains(t, b.Row(23), "Start")
	assert.NotContains(t, b.Row(23), "Stop")
}

func TestApplicationStartShowsOutput(t *testing.T) {
	a, b, sup := newTestApp(t, config.ScriptConfig{ID: "core", Name: "Aloha Core", Command: "echo hello ${episode}"})
	runApp(t, a)

	press(b, 's')
	p := a.Panel("core")
	waitForPanel(t, p, "Aloha Core launched successfully!")
	waitForPanel(t, p, "hello 1")
	waitForPanel(t, p, "Aloha Core process finished (exit 0).")

	snap, ok := sup.Status("core")
	require.True(t, ok)
	assert.Equal(t, "echo hello 1", snap.Command)

	// The counter feeds the next launch.
	press(b, '+')
	waitForScreen(t, b, "episode=2")
	pressKey(b, backend.KeyEnter)
	waitForPanel(t, p, "hello 2")
	assert.Equal(t, "2", mustParam(t, a, "episode"))
}

func TestApplicationStderrIsRed(t *testing.T) {
	a, b, _ := newTestApp(t, config.ScriptConfig{ID: "core", Command: "echo oops >&2", Shell: true})
	runApp(t, a)

	press(b, 's')
	p := a.Panel("core")
	waitForPanel(t, p, "oops")

	for _, line := range p.Lines() {
		if line.Text == "oops" {
			assert.Equal(t, styleStderr, line.Style)
		}
	}

	waitForScreen(t, b, "oops")
	x, y, ok := findOnScreen(b, "oops")
	require.True(t, ok)
	assert.Equal(t, core.ColorRed, b.GetCell(x, y).Style.Foreground)
	assert.Equal(t, styleHeaderParam, b.GetCell(0, 0).Style)
}

func TestApplicationResizeRedraws(t *testing.T) {
	a, b, _ := newTestApp(t,
		config.ScriptConfig{ID: "core", Name: "Aloha Core", Command: "true"},
		config.ScriptConfig{ID: "sim", Command: "true"},
	)
	runApp(t, a)
	waitForScreen(t, b, "Welcome to Aloha Console!")

	b.Resize(100, 10)
	require.Eventually(t, func() bool {
		return strings.Contains(b.Row(9), "Quit") && strings.Contains(b.Row(0), "Aloha Console")
	}, waitTimeout, 10*time.Millisecond, "screen was not redrawn after resize:\n%s", b.Text())
	assert.Contains(t, b.Text(), "Aloha Core [idle]")
	assert.Contains(t, b.Text(), "sim [idle]")

	// Too short for a panel: header and footer only.
	b.Resize(100, 3)
	require.Eventually(t, func() bool {
		return strings.Contains(b.Row(2), "Quit")
	}, waitTimeout, 10*time.Millisecond)
	assert.NotContains(t, b.Text(), "[idle]")
}

// findOnScreen returns the position of the first cell of text.
func findOnScreen(b *backend.NullBackend, text string) (x, y int, ok bool) {
	_, height := b.Size()
	for y := range height {
		row := b.Row(y)
		if i := strings.Index(row, text); i >= 0 {
			return utf8.RuneCountInString(row[:i]), y, true
		}
	}
	return 0, 0, false
}

func TestApplicationStopRunningScript(t *testing.T) {
	a, b, sup := newTestApp(t, config.ScriptConfig{ID: "core", Command: "echo ready; exec sleep 30", Shell: true})
	runApp(t, a)

	press(b, 's')
	p := a.Panel("core")
	waitForPanel(t, p, "ready")
	waitForScreen(t, b, "Stop")
	assert.Equal(t, []string{"core"}, sup.Active())

	press(b, 'x')
	waitForPanel(t, p, "core stopped (")
	assert.Empty(t, sup.Active())
	waitForScreen(t, b, "Start")
}

func TestApplicationUsageInTitle(t *testing.T) {
	a, b, _ := newTestApp(t, config.ScriptConfig{ID: "core", Command: "sleep 30"})
	runApp(t, a)

	press(b, 's')
	waitForScreen(t, b, "core [running] pid ")
	waitForScreen(t, b, " rss ")
	assert.NotZero(t, a.Panel("core").State())
}

func TestApplicationLaunchFailures(t *testing.T) {
	a, b, _ := newTestApp(t,
		config.ScriptConfig{ID: "missing", Command: "/nonexistent/binary --flag"},
		config.ScriptConfig{ID: "param", Command: "echo ${season}"},
	)
	runApp(t, a)

	press(b, 's')
	waitForPanel(t, a.Panel("missing"), "Failed to launch missing")

	pressKey(b, backend.KeyTab)
	press(b, 's')
	waitForPanel(t, a.Panel("param"), "Failed to launch param")
	waitForPanel(t, a.Panel("param"), "season")
}

func TestApplicationAlreadyRunningSetsStatus(t *testing.T) {
	a, b, sup := newTestApp(t, config.ScriptConfig{ID: "core", Command: "sleep 30"})
	runApp(t, a)

	press(b, 's')
	require.Eventually(t, func() bool { return len(sup.Active()) == 1 }, waitTimeout, 10*time.Millisecond)

	press(b, 's')
	waitForScreen(t, b, "core is already running")
	require.Eventually(t, func() bool { return b.Beeps() > 0 }, waitTimeout, 10*time.Millisecond)
}

func TestApplicationQuitStopsScripts(t *testing.T) {
	a, b, sup := newTestApp(t,
		config.ScriptConfig{ID: "a", Command: "sleep 30"},
		config.ScriptConfig{ID: "b", Command: "sleep 30"},
	)
	done := runApp(t, a)

	press(b, 's')
	pressKey(b, backend.KeyTab)
	press(b, 's')
	require.Eventually(t, func() bool { return len(sup.Active()) == 2 }, waitTimeout, 10*time.Millisecond)

	pids := []int{sup.Handle("a").PID(), sup.Handle("b").PID()}

	press(b, 'q')
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after q")
	}

	assert.Empty(t, sup.Active())
	assert.True(t, sup.IsShuttingDown())
	for _, id := range []string{"a", "b"} {
		snap, _ := sup.Status(id)
		assert.Equal(t, process.StateStopped, snap.State, id)
	}
	for _, pid := range pids {
		alive, err := psprocess.PidExists(int32(pid))
		require.NoError(t, err)
		assert.False(t, alive, "pid %d survived shutdown", pid)
	}

	// The backend was shut down after the scripts stopped.
	assert.Equal(t, backend.EventClosed, b.PollEvent().Type)
}

func TestApplicationContextCancel(t *testing.T) {
	a, _, _ := newTestApp(t, config.ScriptConfig{ID: "core", Command: "true"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	require.Eventually(t, a.IsRunning, waitTimeout, 5*time.Millisecond)

	assert.ErrorIs(t, a.Run(ctx), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApplicationConfigChangeNotice(t *testing.T) {
	a, b, _ := newTestApp(t, config.ScriptConfig{ID: "core", Command: "true"})
	a.configChanged(config.ChangeEvent{Path: "/tmp/runboard.toml", Time: time.Now()})
	assert.Equal(t, "configuration changed on disk; restart to apply", a.status)

	a.configChanged(config.ChangeEvent{Err: errors.New("boom")})
	assert.Equal(t, "configuration changed on disk; restart to apply", a.status)

	require.NoError(t, b.Init())
	a.render()
	assert.Contains(t, b.Row(23), "restart to apply")
}

func TestApplicationFocusAndClear(t *testing.T) {
	a, b, _ := newTestApp(t,
		config.ScriptConfig{ID: "a", Command: "true"},
		config.ScriptConfig{ID: "b", Command: "true"},
		config.ScriptConfig{ID: "c", Command: "true"},
	)
	require.NoError(t, b.Init())

	assert.Equal(t, "a", a.Focused().ID())
	require.NoError(t, a.Do(ActionFocusNext))
	assert.Equal(t, "b", a.Focused().ID())
	require.NoError(t, a.Do(ActionFocusPrev))
	require.NoError(t, a.Do(ActionFocusPrev))
	assert.Equal(t, "c", a.Focused().ID())

	a.Panel("c").Append("noise", styleOutput)
	require.NoError(t, a.Do(ActionClear))
	assert.Empty(t, a.Panel("c").Texts())
	assert.Equal(t, []string{"Welcome to Aloha Console!"}, a.Panel("a").Texts())

	assert.ErrorIs(t, a.Do(ActionQuit), ErrQuit)
}

func TestApplicationCounter(t *testing.T) {
	a, b, _ := newTestApp(t, config.ScriptConfig{ID: "core", Command: "true"})
	require.NoError(t, b.Init())

	require.NoError(t, a.Do(ActionCounterUp))
	require.NoError(t, a.Do(ActionCounterUp))
	require.NoError(t, a.Do(ActionCounterDown))
	assert.Equal(t, "2", mustParam(t, a, "episode"))
	assert.Equal(t, "episode=2", a.status)

	a.Params().Set("episode", "pilot")
	require.NoError(t, a.Do(ActionCounterUp))
	assert.Equal(t, "pilot", mustParam(t, a, "episode"))
	assert.Equal(t, 1, b.Beeps())
}

func TestApplicationMouse(t *testing.T) {
	a, b, _ := newTestApp(t,
		config.ScriptConfig{ID: "a", Command: "true"},
		config.ScriptConfig{ID: "b", Command: "true"},
	)
	require.NoError(t, b.Init())
	a.render()

	second := a.regions[1].frame
	require.False(t, second.IsEmpty())

	require.NoError(t, a.handleEvent(backend.Event{
		Type: backend.EventMouse, MouseButton: backend.MouseLeft,
		MouseX: 5, MouseY: second.Top + 1,
	}))
	assert.Equal(t, "b", a.Focused().ID())

	p := a.Panel("b")
	for range 50 {
		p.Append("line", styleOutput)
	}
	require.NoError(t, a.handleEvent(backend.Event{
		Type: backend.EventMouse, MouseButton: backend.MouseWheelUp,
		MouseX: 5, MouseY: second.Top + 1,
	}))
	assert.False(t, p.Following())

	require.NoError(t, a.Do(ActionScrollBottom))
	assert.True(t, p.Following())
}

func TestLayout(t *testing.T) {
	regions := layout(2, 80, 24)
	require.Len(t, regions, 2)
	assert.Equal(t, 1, regions[0].frame.Top)
	assert.Equal(t, 11, regions[0].frame.Height())
	assert.Equal(t, 12, regions[1].frame.Top)
	assert.Equal(t, 11, regions[1].frame.Height())
	assert.Equal(t, 23, regions[1].frame.Bottom)
	assert.Equal(t, 78, regions[0].body.Width())

	// Panels that do not fit are skipped.
	regions = layout(5, 80, 8)
	assert.False(t, regions[1].frame.IsEmpty())
	assert.True(t, regions[2].frame.IsEmpty())

	assert.True(t, layout(1, 80, 3)[0].frame.IsEmpty())
}

func mustParam(t *testing.T, a *Application, name string) string {
	t.Helper()
	v, ok := a.Params().Get(name)
	require.True(t, ok, "parameter %q missing", name)
	return v
}
