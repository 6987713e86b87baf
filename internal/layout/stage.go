package layout

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	defaultStageBaseline = 12
	minStageBaseline     = 2
	maxStageBaseline     = 48
	stageBaselineStep    = 2
)

// Stage keeps each window roughly where the user put it and only tidies
// its edges onto a uniform grid. Windows may overlap.
type Stage struct {
	// Baseline is the number of grid cells along each screen axis.
	Baseline int `json:"baseline"`
}

func NewStage() *Stage {
	return &Stage{Baseline: defaultStageBaseline}
}

func (*Stage) Key() string  { return KeyStage }
func (*Stage) Name() string { return "Stage" }

func (l *Stage) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}
	frame := screen.Frame
	xOrigins, xExtents := stageGuides(frame.X, frame.Width, l.baseline())
	yOrigins, yExtents := stageGuides(frame.Y, frame.Height, l.baseline())

	out := make([]FrameAssignment, 0, len(windows))
	for _, w := range windows {
		r := clampOnto(w.Frame, frame)
		left := nearest(xOrigins, r.X)
		right := nearest(xExtents, r.MaxX())
		top := nearest(yOrigins, r.Y)
		bottom := nearest(yExtents, r.MaxY())
		if right <= left {
			right = nextAbove(xExtents, left, frame.MaxX())
		}
		if bottom <= top {
			bottom = nextAbove(yExtents, top, frame.MaxY())
		}
		snapped := Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
		out = append(out, FrameAssignment{
			Frame:         snapped,
			Window:        w,
			ScreenFrame:   frame,
			Rules:         ResizeRules{Unconstrained: Horizontal, ScaleFactor: 1},
			IgnoreMargins: snapped == frame,
		})
	}
	return out
}

func (l *Stage) Commands() map[int]string {
	return map[int]string{
		1: "Finer grid",
		2: "Coarser grid",
		3: "Reset grid",
	}
}

func (l *Stage) Command(n int, _ WindowID) {
	switch n {
	case 1:
		l.Baseline = clampInt(l.baseline()+stageBaselineStep, minStageBaseline, maxStageBaseline)
	case 2:
		l.Baseline = clampInt(l.baseline()-stageBaselineStep, minStageBaseline, maxStageBaseline)
	case 3:
		l.Baseline = defaultStageBaseline
	}
}

func (l *Stage) MarshalState() ([]byte, error) {
	return json.Marshal(l)
}

func (l *Stage) UnmarshalState(data []byte) error {
	var next Stage
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("decode stage state: %w", err)
	}
	if next.Baseline < minStageBaseline || next.Baseline > maxStageBaseline {
		return fmt.Errorf("stage baseline %d out of range", next.Baseline)
	}
	*l = next
	return nil
}

func (l *Stage) baseline() int {
	if l.Baseline < minStageBaseline {
		return defaultStageBaseline
	}
	return l.Baseline
}

// clampOnto moves r fully inside screen, trimming it when it is larger.
func clampOnto(r, screen Rect) Rect {
	if r.MaxX() > screen.MaxX() {
		r.X = screen.MaxX() - r.Width
	}
	if r.MaxY() > screen.MaxY() {
		r.Y = screen.MaxY() - r.Height
	}
	if r.X < screen.X {
		r.X = screen.X
	}
	if r.Y < screen.Y {
		r.Y = screen.Y
	}
	if r.MaxX() > screen.MaxX() {
		r.Width = screen.MaxX() - r.X
	}
	if r.MaxY() > screen.MaxY() {
		r.Height = screen.MaxY() - r.Y
	}
	return r
}

// stageGuides returns the grid lines an origin edge and an extent edge may
// snap to. Origins never use the far screen edge and extents never use the
// near one. The first interior origin line and the last interior extent
// line are dropped so edges close to the screen border land on it.
func stageGuides(start, length, cells int) (origins, extents []int) {
	lines := make([]int, cells+1)
	for i := range lines {
		lines[i] = start + int(math.Round(float64(i)*float64(length)/float64(cells)))
	}
	for i, v := range lines {
		if i != cells && (i != 1 || cells < 3) {
			origins = append(origins, v)
		}
		if i != 0 && (i != cells-1 || cells < 3) {
			extents = append(extents, v)
		}
	}
	return origins, extents
}

func nearest(guides []int, v int) int {
	best := guides[0]
	for _, g := range guides[1:] {
		if abs(g-v) < abs(best-v) {
			best = g
		}
	}
	return best
}

// nextAbove returns the first guide greater than v, or limit.
func nextAbove(guides []int, v, limit int) int {
	for _, g := range guides {
		if g > v {
			return g
		}
	}
	return limit
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
