package layout

// TwoPane shows one main window beside one secondary frame. The split runs
// along the screen's longer side. Any window past the second shares the
// secondary frame with it.
type TwoPane struct {
	panes
}

func NewTwoPane() *TwoPane {
	return &TwoPane{panes: defaultPanes()}
}

func (l *TwoPane) Key() string  { return KeyTwoPane }
func (l *TwoPane) Name() string { return "Two Pane" }

// The main pane is always a single window.
func (l *TwoPane) MainPaneCount() int      { return 1 }
func (l *TwoPane) IncreaseMainPaneCount() {}
func (l *TwoPane) DecreaseMainPaneCount() {}

func (l *TwoPane) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}

	frame := screen.Frame
	axis := Horizontal
	if frame.Height > frame.Width {
		axis = Vertical
	}
	mainExtent, secondaryExtent, ratio := l.extents(axis.of(frame), len(windows)-1)
	cross := axis.cross().of(frame)

	out := make([]FrameAssignment, 0, len(windows))
	for i, w := range windows {
		a := FrameAssignment{Window: w, ScreenFrame: frame}
		if i == 0 {
			a.Frame = place(frame, axis, 0, mainExtent, 0, cross)
			a.Rules = ResizeRules{IsMain: true, Unconstrained: axis, ScaleFactor: paneScale(ratio)}
		} else {
			a.Frame = place(frame, axis, mainExtent, secondaryExtent, 0, cross)
			a.Rules = ResizeRules{Unconstrained: axis, ScaleFactor: paneScale(1 - ratio)}
		}
		out = append(out, a)
	}
	return out
}

func (l *TwoPane) UnmarshalState(data []byte) error {
	if err := l.panes.UnmarshalState(data); err != nil {
		return err
	}
	l.Count = 1
	return nil
}
