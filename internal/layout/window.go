package layout

import "strconv"

// WindowID is an opaque, stable window identifier supplied by the window provider.
type WindowID uint32

func (id WindowID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Window is the immutable snapshot of a window taken when a reflow starts.
type Window struct {
	ID      WindowID
	Frame   Rect
	Focused bool
}

// WindowSet is the ordered set of windows a layout computes frames for.
// The owning screen builds a fresh set for every reflow; layouts only read it.
type WindowSet struct {
	Windows []Window

	IsActive   func(WindowID) bool
	IsFloating func(WindowID) bool
	Resolve    func(WindowID) (Window, bool)
}

// NewWindowSet builds a set where every listed window is active and none float.
func NewWindowSet(windows []Window) WindowSet {
	byID := make(map[WindowID]Window, len(windows))
	for _, w := range windows {
		byID[w.ID] = w
	}
	return WindowSet{
		Windows:    windows,
		IsActive:   func(id WindowID) bool { _, ok := byID[id]; return ok },
		IsFloating: func(WindowID) bool { return false },
		Resolve: func(id WindowID) (Window, bool) {
			w, ok := byID[id]
			return w, ok
		},
	}
}

// Active returns the windows eligible for tiling in set order.
func (ws WindowSet) Active() []Window {
	out := make([]Window, 0, len(ws.Windows))
	for _, w := range ws.Windows {
		if ws.IsActive != nil && !ws.IsActive(w.ID) {
			continue
		}
		if ws.IsFloating != nil && ws.IsFloating(w.ID) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Focused returns the focused window, if any.
func (ws WindowSet) Focused() (Window, bool) {
	for _, w := range ws.Windows {
		if w.Focused {
			return w, true
		}
	}
	return Window{}, false
}

func (ws WindowSet) lookup(id WindowID) (Window, bool) {
	if ws.Resolve != nil {
		return ws.Resolve(id)
	}
	for _, w := range ws.Windows {
		if w.ID == id {
			return w, true
		}
	}
	return Window{}, false
}

// Screen is a physical display area available for tiling.
type Screen struct {
	ID string
	// Frame is already adjusted for docks, panels and configured padding.
	Frame Rect
	// X orders screens left to right.
	X int
}
