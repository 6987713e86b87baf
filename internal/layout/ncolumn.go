package layout

import "math"

// ColumnPosition selects where the main column sits in a multi-column layout.
type ColumnPosition int

const (
	MainLeft ColumnPosition = iota
	MainMiddle
	MainRight
)

// MultiColumn tiles the main pane as one column and spreads the remaining
// windows over two or three side columns.
type MultiColumn struct {
	panes
	key      string
	name     string
	sides    int // number of non-main columns: 2 or 3
	position ColumnPosition
}

// NewMultiColumn returns a multi-column layout with sides non-main columns.
func NewMultiColumn(key, name string, sides int, position ColumnPosition) *MultiColumn {
	if sides < 2 {
		sides = 2
	}
	if sides > 3 {
		sides = 3
	}
	return &MultiColumn{panes: defaultPanes(), key: key, name: name, sides: sides, position: position}
}

func (l *MultiColumn) Key() string  { return l.key }
func (l *MultiColumn) Name() string { return l.name }

// sideCounts distributes rest windows over the side columns. Trailing
// columns are computed first with integer division so leftovers always land
// in the secondary column.
func (l *MultiColumn) sideCounts(rest int) []int {
	if l.sides == 3 {
		quaternary := rest / 3
		tertiary := (rest - quaternary) >> 1
		secondary := rest - quaternary - tertiary
		return []int{secondary, tertiary, quaternary}
	}
	tertiary := rest >> 1
	return []int{rest - tertiary, tertiary}
}

func (l *MultiColumn) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}

	frame := screen.Frame
	mainCount, rest := l.split(len(windows))
	mainWidth, sideWidth, ratio := l.extents(frame.Width, rest)

	counts := l.sideCounts(rest)
	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}

	// Logical columns: index 0 is main, then secondary, tertiary, quaternary.
	type column struct {
		count int
		width int
	}
	columns := []column{{count: mainCount, width: mainWidth}}
	slot := 0
	for _, c := range counts {
		col := column{count: c}
		if c > 0 {
			col.width = exactPiece(sideWidth, nonEmpty, slot)
			slot++
		}
		columns = append(columns, col)
	}

	xs := make([]int, len(columns))
	x := frame.X
	for _, idx := range l.physicalOrder(len(columns)) {
		xs[idx] = x
		x += columns[idx].width
	}

	out := make([]FrameAssignment, 0, len(windows))
	next := 0
	for idx, col := range columns {
		isMain := idx == 0
		scale := paneScale(ratio)
		if !isMain {
			scale = paneScale(1 - ratio)
		}
		for j := 0; j < col.count; j++ {
			off, size := evenPiece(frame.Height, col.count, j)
			out = append(out, FrameAssignment{
				Frame:       Rect{X: xs[idx], Y: frame.Y + off, Width: col.width, Height: size},
				Window:      windows[next],
				ScreenFrame: frame,
				Rules:       ResizeRules{IsMain: isMain, Unconstrained: Horizontal, ScaleFactor: scale},
			})
			next++
		}
	}
	return out
}

// physicalOrder lists logical column indexes from left to right.
func (l *MultiColumn) physicalOrder(n int) []int {
	order := make([]int, 0, n)
	switch l.position {
	case MainMiddle:
		order = append(order, 1, 0)
		for i := 2; i < n; i++ {
			order = append(order, i)
		}
	case MainRight:
		for i := n - 1; i >= 0; i-- {
			order = append(order, i)
		}
	default:
		for i := 0; i < n; i++ {
			order = append(order, i)
		}
	}
	return order
}

// exactPiece divides total into n pieces where the last piece absorbs the
// rounding remainder.
func exactPiece(total, n, i int) int {
	if n < 1 {
		return total
	}
	size := int(math.Round(float64(total) / float64(n)))
	if i < n-1 {
		return size
	}
	return max(0, total-size*(n-1))
}
