package app

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/runboard/internal/process"
	"github.com/dshills/runboard/internal/renderer/core"
)

// Line styles used in panels.
var (
	styleOutput  = core.DefaultStyle()
	styleStderr  = styleOutput.WithForeground(core.ColorRed)
	styleDropped = styleOutput.WithForeground(core.ColorFromRGB(0xff, 0x87, 0x00))
	styleSuccess = core.NewStyle(core.ColorGreen)
	styleWarning = core.NewStyle(core.ColorYellow)
	styleFailure = core.NewStyle(core.ColorRed).Bold()
	styleInfo    = core.NewStyle(core.ColorCyan)
)

// PanelLine is one line of panel scrollback.
type PanelLine struct {
	Text  string
	Style core.Style
}

// Panel holds the scrollback and status of one script.
//
// Panel is safe for concurrent use. Only the event loop writes to it.
type Panel struct {
	mu sync.Mutex

	def process.Definition

	// lines is a ring buffer of capacity entries starting at head.
	lines    []PanelLine
	head     int
	count    int
	capacity int

	// scroll is how many lines the view is moved up from the bottom.
	scroll int

	snap     process.Snapshot
	hasSnap  bool
	usage    process.Usage
	hasUsage bool
}

// NewPanel creates a panel keeping at most capacity lines.
func NewPanel(def process.Definition, capacity int) *Panel {
	if capacity <= 0 {
		capacity = 1
	}
	return &Panel{
		def:      def,
		lines:    make([]PanelLine, capacity),
		capacity: capacity,
	}
}

// ID returns the script ID.
func (p *Panel) ID() string {
	return p.def.ID
}

// Name returns the script display name.
func (p *Panel) Name() string {
	return p.def.DisplayName()
}

// Append adds a line, evicting the oldest when full.
func (p *Panel) Append(text string, style core.Style) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := (p.head + p.count) % p.capacity
	p.lines[idx] = PanelLine{Text: text, Style: style}
	if p.count < p.capacity {
		p.count++
	} else {
		p.head = (p.head + 1) % p.capacity
	}

	// Keep a scrolled view anchored on the same content.
	if p.scroll > 0 {
		p.scroll = min(p.scroll+1, p.count)
	}
}

// Len returns the number of stored lines.
func (p *Panel) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Lines returns the stored lines, oldest first.
func (p *Panel) Lines() []PanelLine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slice(0, p.count)
}

// Texts returns the text of the stored lines, oldest first.
func (p *Panel) Texts() []string {
	lines := p.Lines()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// Clear drops all scrollback.
func (p *Panel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.lines)
	p.head = 0
	p.count = 0
	p.scroll = 0
}

// Scroll moves the view by delta lines; positive scrolls toward older
// output.
func (p *Panel) Scroll(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = max(0, min(p.scroll+delta, p.count))
}

// ScrollTop moves the view to the oldest line.
func (p *Panel) ScrollTop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = p.count
}

// ScrollBottom follows new output again.
func (p *Panel) ScrollBottom() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = 0
}

// Following reports whether the view tracks the newest line.
func (p *Panel) Following() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll == 0
}

// Visible returns the lines shown in a view of the given height.
func (p *Panel) Visible(height int) []PanelLine {
	p.mu.Lock()
	defer p.mu.Unlock()

	if height <= 0 || p.count == 0 {
		return nil
	}
	// Never scroll past the point where the oldest line is at the top.
	scroll := min(p.scroll, max(0, p.count-height))
	end := p.count - scroll
	start := max(0, end-height)
	return p.slice(start, end)
}

// slice returns lines [start, end) in logical order. Caller holds mu.
func (p *Panel) slice(start, end int) []PanelLine {
	out := make([]PanelLine, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, p.lines[(p.head+i)%p.capacity])
	}
	return out
}

// SetSnapshot records the latest status of the script.
func (p *Panel) SetSnapshot(snap process.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = snap
	p.hasSnap = true
	if !snap.State.IsActive() {
		p.hasUsage = false
	}
}

// SetUsage records the latest resource sample.
func (p *Panel) SetUsage(u process.Usage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usage = u
	p.hasUsage = true
}

// State returns the last known state of the script.
func (p *Panel) State() process.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasSnap {
		return process.StateIdle
	}
	return p.snap.State
}

// Title formats the border title: name, state, pid, usage and exit status.
func (p *Panel) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := process.StateIdle
	if p.hasSnap {
		state = p.snap.State
	}

	parts := []string{p.def.DisplayName(), "[" + state.String() + "]"}
	if state.IsActive() && p.snap.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid %d", p.snap.PID))
		if p.hasUsage {
			parts = append(parts,
				fmt.Sprintf("cpu %.1f%%", p.usage.CPUPercent),
				"rss "+formatBytes(p.usage.RSS))
		}
	}
	if p.hasSnap && p.snap.Exit != nil {
		parts = append(parts, p.snap.Exit.String())
	}
	if p.scroll > 0 {
		parts = append(parts, fmt.Sprintf("+%d", p.scroll))
	}
	return strings.Join(parts, " ")
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
