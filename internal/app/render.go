package app

import "github.com/dshills/runboard/internal/renderer/core"

// Screen styles.
var (
	styleHeader      = styleHeaderParam.Bold()
	styleHeaderParam = core.NewStyle(core.ColorWhite).WithBackground(core.ColorBlue)
	styleBorder      = core.NewStyle(core.ColorGray)
	styleBorderFocus = core.NewStyle(core.ColorCyan).Bold()
	styleTitle       = core.DefaultStyle().Bold()
	styleFooterKey   = core.DefaultStyle().Reverse()
	styleFooterText  = core.DefaultStyle()
	styleStatus      = core.NewStyle(core.ColorYellow)
)

// Box drawing runes.
const (
	boxHorizontal  = '─'
	boxVertical    = '│'
	boxTopLeft     = '┌'
	boxTopRight    = '┐'
	boxBottomLeft  = '└'
	boxBottomRight = '┘'
)

// minPanelHeight fits a border and one line of output.
const minPanelHeight = 3

// panelRegion is where a panel was drawn.
type panelRegion struct {
	frame core.ScreenRect
	body  core.ScreenRect
}

// layout stacks n panels between the header and footer rows. Panels that
// do not fit get an empty region.
func layout(n, width, height int) []panelRegion {
	regions := make([]panelRegion, n)
	avail := height - 2
	if n == 0 || avail < minPanelHeight || width < 2 {
		return regions
	}

	shown := min(n, avail/minPanelHeight)
	each := avail / shown
	top := 1
	for i := range shown {
		h := each
		if i == shown-1 {
			h = avail - each*(shown-1)
		}
		frame := core.RectFromSize(top, 0, h, width)
		regions[i] = panelRegion{frame: frame, body: frame.Inset(1)}
		top += h
	}
	return regions
}

// panelAt returns the index of the panel drawn at (x, y).
func (a *Application) panelAt(x, y int) (int, bool) {
	for i, r := range a.regions {
		f := r.frame
		if !f.IsEmpty() && y >= f.Top && y < f.Bottom && x >= f.Left && x < f.Right {
			return i, true
		}
	}
	return 0, false
}

// render redraws the whole screen.
func (a *Application) render() {
	b := a.backend
	width, height := b.Size()
	b.Clear()
	if width <= 0 || height <= 0 {
		b.Show()
		return
	}

	a.drawHeader(width)
	a.regions = layout(len(a.panels), width, height)
	focus := int(a.focus.Load())
	for i, p := range a.panels {
		if a.regions[i].frame.IsEmpty() {
			continue
		}
		a.drawPanel(p, a.regions[i], i == focus)
	}
	if height > 1 {
		a.drawFooter(width, height-1)
	}

	b.Show()
}

func (a *Application) drawHeader(width int) {
	a.backend.Fill(core.RectFromSize(0, 0, 1, width), core.NewStyledCell(' ', styleHeaderParam))
	x := a.drawText(1, 0, width-1, a.cfg.Title, styleHeader)
	if params := a.params.String(); params != "" {
		a.drawText(x+2, 0, width-x-2, params, styleHeaderParam)
	}
}

func (a *Application) drawPanel(p *Panel, r panelRegion, focused bool) {
	border := styleBorder
	if focused {
		border = styleBorderFocus
	}
	a.drawBox(r.frame, border)

	title := " " + p.Title() + " "
	a.drawText(r.frame.Left+2, r.frame.Top, r.frame.Width()-4, title, styleTitle)

	body := r.body
	for i, line := range p.Visible(body.Height()) {
		a.drawText(body.Left, body.Top+i, body.Width(), line.Text, line.Style)
	}
}

func (a *Application) drawBox(rect core.ScreenRect, style core.Style) {
	b := a.backend
	top, bottom := rect.Top, rect.Bottom-1
	left, right := rect.Left, rect.Right-1

	b.Fill(core.ScreenRect{Top: top, Left: left + 1, Bottom: top + 1, Right: right}, core.NewStyledCell(boxHorizontal, style))
	b.Fill(core.ScreenRect{Top: bottom, Left: left + 1, Bottom: bottom + 1, Right: right}, core.NewStyledCell(boxHorizontal, style))
	b.Fill(core.ScreenRect{Top: top + 1, Left: left, Bottom: bottom, Right: left + 1}, core.NewStyledCell(boxVertical, style))
	b.Fill(core.ScreenRect{Top: top + 1, Left: right, Bottom: bottom, Right: right + 1}, core.NewStyledCell(boxVertical, style))
	b.SetCell(left, top, core.NewStyledCell(boxTopLeft, style))
	b.SetCell(right, top, core.NewStyledCell(boxTopRight, style))
	b.SetCell(left, bottom, core.NewStyledCell(boxBottomLeft, style))
	b.SetCell(right, bottom, core.NewStyledCell(boxBottomRight, style))
}

// footerHints returns the key hints for the focused panel. Start is offered
// only when the script is not active and Stop only when it is.
func (a *Application) footerHints() [][2]string {
	hints := [][2]string{{"Tab", "Focus"}}
	if a.Focused().State().IsActive() {
		hints = append(hints, [2]string{"x", "Stop"}, [2]string{"r", "Restart"})
	} else {
		hints = append(hints, [2]string{"s", "Start"})
	}
	hints = append(hints, [2]string{"c", "Clear"})
	if counter := a.cfg.UI.Counter; counter != "" {
		hints = append(hints, [2]string{"+/-", counter})
	}
	hints = append(hints, [2]string{"PgUp/PgDn", "Scroll"}, [2]string{"q", "Quit"})
	return hints
}

func (a *Application) drawFooter(width, y int) {
	x := 0
	for _, hint := range a.footerHints() {
		x = a.drawText(x, y, width-x, " "+hint[0]+" ", styleFooterKey)
		x = a.drawText(x, y, width-x, " "+hint[1]+"  ", styleFooterText)
	}
	if a.status != "" && x < width {
		a.drawText(x+1, y, width-x-1, a.status, styleStatus)
	}
}

// drawText writes s starting at (x, y), clipped to maxWidth columns, and
// returns the column after the last cell written.
func (a *Application) drawText(x, y, maxWidth int, s string, style core.Style) int {
	end := x + maxWidth
	for _, r := range s {
		if r == '\t' {
			r = ' '
		}
		w := core.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > end {
			break
		}
		a.backend.SetCell(x, y, core.NewStyledCell(r, style))
		if w == 2 {
			a.backend.SetCell(x+1, y, core.Cell{Style: style})
		}
		x += w
	}
	return x
}
