package tiling

import (
	"fmt"

	"github.com/1broseidon/tessel/internal/layout"
)

const maxPreviewWindows = 64

// PreviewRequest describes an offline layout computation.
type PreviewRequest struct {
	Layout   string
	Windows  int
	Screen   layout.Rect
	Settings layout.Settings
	// MainPaneRatio and MainPaneCount override a paned layout's defaults
	// when positive.
	MainPaneRatio float64
	MainPaneCount int
}

// PreviewFrame is the frame computed for one synthetic window.
type PreviewFrame struct {
	Window layout.WindowID `json:"window"`
	Frame  layout.Rect     `json:"frame"`
}

// PreviewResult is the outcome of a preview.
type PreviewResult struct {
	Layout string         `json:"layout"`
	Name   string         `json:"name"`
	Screen layout.Rect    `json:"screen"`
	Frames []PreviewFrame `json:"frames"`
}

// Preview runs a layout against synthetic windows 1..n without touching
// the window system.
func Preview(reg *layout.Registry, req PreviewRequest) (PreviewResult, error) {
	if req.Windows < 0 || req.Windows > maxPreviewWindows {
		return PreviewResult{}, fmt.Errorf("window count must be between 0 and %d", maxPreviewWindows)
	}
	if req.Screen.Empty() {
		return PreviewResult{}, fmt.Errorf("screen %s is empty", req.Screen)
	}
	l, err := reg.New(req.Layout)
	if err != nil {
		return PreviewResult{}, err
	}
	if p, ok := l.(layout.PanedLayout); ok {
		if req.MainPaneRatio > 0 {
			p.RecommendMainPaneRatio(req.MainPaneRatio)
		}
		for i := p.MainPaneCount(); i < min(req.MainPaneCount, maxPreviewWindows); i++ {
			p.IncreaseMainPaneCount()
		}
	}

	windows := make([]layout.Window, 0, req.Windows)
	for i := 1; i <= req.Windows; i++ {
		windows = append(windows, layout.Window{ID: layout.WindowID(i), Frame: req.Screen, Focused: i == 1})
	}
	ws := layout.NewWindowSet(windows)
	if c, ok := l.(layout.ChangeAware); ok {
		c.Reconcile(ws)
	}

	res := PreviewResult{Layout: l.Key(), Name: l.Name(), Screen: req.Screen}
	screen := layout.Screen{ID: "preview", Frame: req.Screen, X: req.Screen.X}
	for _, a := range l.Assignments(ws, screen, req.Settings) {
		res.Frames = append(res.Frames, PreviewFrame{Window: a.Window.ID, Frame: a.FinalFrame(req.Settings)})
	}
	return res, nil
}

// Preview computes key for n windows on the focused screen with the
// current settings.
func (m *Manager) Preview(key string, n int) (PreviewResult, error) {
	sm, err := m.targetScreen()
	if err != nil {
		return PreviewResult{}, err
	}
	return Preview(m.registry, PreviewRequest{
		Layout:   key,
		Windows:  n,
		Screen:   sm.Screen().Frame,
		Settings: m.Options().Settings,
	})
}
