package tiling

import (
	"strconv"
	"strings"
)

// RenderASCII draws a preview as boxes on a cols x rows character grid.
// Later frames are drawn over earlier ones.
func RenderASCII(res PreviewResult, cols, rows int) string {
	cols, rows = max(cols, 8), max(rows, 4)
	grid := make([][]byte, rows)
	for i := range grid {
		grid[i] = []byte(strings.Repeat(" ", cols))
	}

	scr := res.Screen
	if scr.Empty() {
		return ""
	}
	scaleX := func(x int) int { return (x - scr.X) * (cols - 1) / scr.Width }
	scaleY := func(y int) int { return (y - scr.Y) * (rows - 1) / scr.Height }
	clamp := func(v, hi int) int { return min(max(v, 0), hi) }

	for _, f := range res.Frames {
		x0, y0 := clamp(scaleX(f.Frame.X), cols-1), clamp(scaleY(f.Frame.Y), rows-1)
		x1, y1 := clamp(scaleX(f.Frame.MaxX()), cols-1), clamp(scaleY(f.Frame.MaxY()), rows-1)
		if x1 <= x0 {
			x1 = min(x0+1, cols-1)
		}
		if y1 <= y0 {
			y1 = min(y0+1, rows-1)
		}
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				var c byte = ' '
				switch {
				case (y == y0 || y == y1) && (x == x0 || x == x1):
					c = '+'
				case y == y0 || y == y1:
					c = '-'
				case x == x0 || x == x1:
					c = '|'
				}
				grid[y][x] = c
			}
		}
		label := strconv.FormatUint(uint64(f.Window), 10)
		if y0+1 < y1 && x0+1+len(label) <= x1 {
			copy(grid[y0+1][x0+1:], label)
		}
	}

	var b strings.Builder
	for _, line := range grid {
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// DiagramRows is the row count that keeps the screen's aspect ratio at
// cols columns, taking terminal cells as twice as tall as they are wide.
func DiagramRows(res PreviewResult, cols int) int {
	if res.Screen.Width <= 0 {
		return max(cols/4, 4)
	}
	return max(cols*res.Screen.Height/res.Screen.Width/2, 4)
}
