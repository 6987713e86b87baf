package layout

import (
	"fmt"
	"math"
)

// Rect represents a window position and size in screen pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d at %d,%d", r.Width, r.Height, r.X, r.Y)
}

// MaxX returns the first column to the right of the rectangle.
func (r Rect) MaxX() int { return r.X + r.Width }

// MaxY returns the first row below the rectangle.
func (r Rect) MaxY() int { return r.Y + r.Height }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Center returns the center point of the rectangle.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}

// Intersects reports whether two rectangles share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.MaxX() && o.X < r.MaxX() && r.Y < o.MaxY() && o.Y < r.MaxY()
}

// Inset shrinks the rectangle by the given amounts on each edge.
func (r Rect) Inset(top, right, bottom, left int) Rect {
	return Rect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  r.Width - left - right,
		Height: r.Height - top - bottom,
	}
}

// Dimension names one axis of a rectangle.
type Dimension int

const (
	Horizontal Dimension = iota
	Vertical
)

func (d Dimension) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

func (d Dimension) of(r Rect) int {
	if d == Vertical {
		return r.Height
	}
	return r.Width
}

// Split divides total into two pieces at ratio. The first piece is
// round(total*ratio) and the pieces always sum to total.
func Split(total int, ratio float64) (int, int) {
	ratio = ClampRatio(ratio)
	first := int(math.Round(float64(total) * ratio))
	if first > total {
		first = total
	}
	return first, total - first
}

// ClampRatio limits a ratio to [0,1]. NaN clamps to 0.
func ClampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// evenPiece returns the offset and length of pane i when total is divided
// into n panes. Every pane is round(total/n) long except that the last one
// is trimmed so the panes never run past total. When rounding up would
// leave the last pane empty, panes take proportional integer bounds so no
// pane is empty unless total < n.
func evenPiece(total, n, i int) (int, int) {
	if n < 1 {
		n = 1
	}
	if total <= 0 {
		return 0, 0
	}
	size := int(math.Round(float64(total) / float64(n)))
	if size*(n-1) >= total {
		lo, hi := i*total/n, (i+1)*total/n
		return lo, hi - lo
	}
	offset := size * i
	if i == n-1 && offset+size > total {
		size = total - offset
	}
	return offset, size
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
