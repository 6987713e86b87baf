package layout

// Column tiles every window as a strip running the full length of the
// screen. The main group shares the main pane ratio of the split axis and
// the secondary group shares the rest.
type Column struct {
	panes
	key  string
	name string
	axis Dimension
}

// NewColumn returns a layout of full-height columns.
func NewColumn() *Column {
	return &Column{panes: defaultPanes(), key: KeyColumn, name: "Column", axis: Horizontal}
}

// NewRow returns a layout of full-width rows.
func NewRow() *Column {
	return &Column{panes: defaultPanes(), key: KeyRow, name: "Row", axis: Vertical}
}

func (l *Column) Key() string  { return l.key }
func (l *Column) Name() string { return l.name }

func (l *Column) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}

	frame := screen.Frame
	mainCount, secondaryCount := l.split(len(windows))
	mainExtent, secondaryExtent, ratio := l.extents(l.axis.of(frame), secondaryCount)
	cross := l.axis.cross().of(frame)

	out := make([]FrameAssignment, 0, len(windows))
	for i, w := range windows {
		isMain := i < mainCount
		var r Rect
		scale := paneScale(ratio)
		if isMain {
			off, size := evenPiece(mainExtent, mainCount, i)
			r = place(frame, l.axis, off, size, 0, cross)
		} else {
			off, size := evenPiece(secondaryExtent, secondaryCount, i-mainCount)
			r = place(frame, l.axis, mainExtent+off, size, 0, cross)
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
