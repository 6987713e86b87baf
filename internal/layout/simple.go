package layout

// Fullscreen gives every active window the whole screen.
type Fullscreen struct{}

func NewFullscreen() *Fullscreen { return &Fullscreen{} }

func (*Fullscreen) Key() string  { return KeyFullscreen }
func (*Fullscreen) Name() string { return "Fullscreen" }

func (*Fullscreen) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}
	out := make([]FrameAssignment, 0, len(windows))
	for _, w := range windows {
		out = append(out, FrameAssignment{
			Frame:       screen.Frame,
			Window:      w,
			ScreenFrame: screen.Frame,
			Rules:       ResizeRules{IsMain: true, Unconstrained: Horizontal, ScaleFactor: 1},
		})
	}
	return out
}

// Floating leaves every window where the user put it.
type Floating struct{}

func NewFloating() *Floating { return &Floating{} }

func (*Floating) Key() string  { return KeyFloating }
func (*Floating) Name() string { return "Floating" }

func (*Floating) Assignments(WindowSet, Screen, Settings) []FrameAssignment {
	return nil
}
