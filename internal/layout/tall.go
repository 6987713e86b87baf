package layout

// Tall places the main pane along one edge of the screen and stacks the
// remaining windows beside it. The Tall variants differ only in which
// edge the main pane occupies.
type Tall struct {
	panes
	key       string
	name      string
	axis      Dimension // axis the main/secondary split runs along
	mainAtEnd bool      // main pane on the right (horizontal) or bottom (vertical)
}

// NewTall returns a layout with the main pane on the left.
func NewTall() *Tall {
	return &Tall{panes: defaultPanes(), key: KeyTall, name: "Tall", axis: Horizontal}
}

// NewTallRight returns a layout with the main pane on the right.
func NewTallRight() *Tall {
	return &Tall{panes: defaultPanes(), key: KeyTallRight, name: "Tall Right", axis: Horizontal, mainAtEnd: true}
}

// NewWide returns a layout with the main pane on top.
func NewWide() *Tall {
	return &Tall{panes: defaultPanes(), key: KeyWide, name: "Wide", axis: Vertical}
}

// NewWideBottom returns a layout with the main pane at the bottom.
func NewWideBottom() *Tall {
	return &Tall{panes: defaultPanes(), key: KeyWideBottom, name: "Wide Bottom", axis: Vertical, mainAtEnd: true}
}

func (l *Tall) Key() string  { return l.key }
func (l *Tall) Name() string { return l.name }

func (l *Tall) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}

	frame := screen.Frame
	mainCount, secondaryCount := l.split(len(windows))
	mainExtent, secondaryExtent, ratio := l.extents(l.axis.of(frame), secondaryCount)
	cross := l.axis.cross().of(frame)

	mainStart, secondaryStart := 0, mainExtent
	if l.mainAtEnd {
		mainStart, secondaryStart = secondaryExtent, 0
	}

	out := make([]FrameAssignment, 0, len(windows))
	for i, w := range windows {
		var r Rect
		isMain := i < mainCount
		scale := paneScale(ratio)
		if isMain {
			off, size := evenPiece(cross, mainCount, i)
			r = place(frame, l.axis, mainStart, mainExtent, off, size)
		} else {
			off, size := evenPiece(cross, secondaryCount, i-mainCount)
			r = place(frame, l.axis, secondaryStart, secondaryExtent, off, size)
			scale = paneScale(1 - ratio)
		}
		out = append(out, FrameAssignment{
			Frame:       r,
			Window:      w,
			ScreenFrame: frame,
			Rules:       ResizeRules{IsMain: isMain, Unconstrained: l.axis, ScaleFactor: scale},
		})
	}
	return out
}

// extents splits total between the main and secondary groups. With no
// secondary windows the main pane takes everything.
func (p *panes) extents(total, secondaryCount int) (mainExtent, secondaryExtent int, ratio float64) {
	if secondaryCount == 0 {
		return total, 0, 1
	}
	ratio = ClampRatio(p.Ratio)
	mainExtent, secondaryExtent = Split(total, ratio)
	return mainExtent, secondaryExtent, ratio
}

func (d Dimension) cross() Dimension {
	if d == Horizontal {
		return Vertical
	}
	return Horizontal
}

// place builds a rect inside frame from an offset/length along axis and an
// offset/length along the orthogonal axis.
func place(frame Rect, axis Dimension, along, alongLen, cross, crossLen int) Rect {
	if axis == Horizontal {
		return Rect{X: frame.X + along, Y: frame.Y + cross, Width: alongLen, Height: crossLen}
	}
	return Rect{X: frame.X + cross, Y: frame.Y + along, Width: crossLen, Height: alongLen}
}
