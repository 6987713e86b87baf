package platform

import "errors"

// ErrNotConnected is returned by a backend whose connection was closed.
var ErrNotConnected = errors.New("window system backend not connected")

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// AllDesktops is the Desktop value of windows shown on every desktop.
const AllDesktops = -1

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID      WindowID
	PID     int
	AppID   string
	Title   string
	Bounds  Rect
	Desktop int
	// Transient windows are dialogs owned by another window.
	Transient  bool
	Fullscreen bool
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Displays() ([]Display, error)
	CurrentDesktop() (int, error)
	ActiveWindow() (WindowID, error)
	// Windows lists visible managed windows in mapping order.
	Windows() ([]Window, error)
	Geometry(windowID WindowID) (Rect, error)
	MoveResize(windowID WindowID, bounds Rect) error
	Focus(windowID WindowID) error
}

// DisplayFor returns the display containing the center of bounds, falling
// back to the first display.
func DisplayFor(displays []Display, bounds Rect) (Display, bool) {
	if len(displays) == 0 {
		return Display{}, false
	}
	cx, cy := bounds.X+bounds.Width/2, bounds.Y+bounds.Height/2
	for _, d := range displays {
		if d.Bounds.Contains(cx, cy) {
			return d, true
		}
	}
	return displays[0], true
}
