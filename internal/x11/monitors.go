package x11

import (
	"fmt"
	"slices"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display. Usable excludes docks and panels.
type Monitor struct {
	ID     int
	Name   string
	Bounds Area
	Usable Area
}

// Area is an X11 rectangle in root window coordinates.
type Area struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (a Area) maxX() int { return a.X + a.Width }
func (a Area) maxY() int { return a.Y + a.Height }

// intersect returns the overlap of a and b, zero sized when they are disjoint.
func (a Area) intersect(b Area) Area {
	x1, y1 := max(a.X, b.X), max(a.Y, b.Y)
	x2, y2 := min(a.maxX(), b.maxX()), min(a.maxY(), b.maxY())
	if x2 <= x1 || y2 <= y1 {
		return Area{}
	}
	return Area{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (a Area) empty() bool { return a.Width <= 0 || a.Height <= 0 }

// Monitors retrieves all active monitors using XRandR, each with its usable
// area computed from dock struts or, failing that, the EWMH work area.
func (c *Connection) Monitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		// Disabled CRTC.
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		if out, err := randr.GetOutputInfo(c.XUtil.Conn(), info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		bounds := Area{X: int(info.X), Y: int(info.Y), Width: int(info.Width), Height: int(info.Height)}
		monitors = append(monitors, Monitor{ID: i, Name: name, Bounds: bounds, Usable: bounds})
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}

	// Mirrored outputs report identical CRTC geometry; keep the first.
	monitors = slices.CompactFunc(monitors, func(a, b Monitor) bool { return a.Bounds == b.Bounds })

	struts := c.dockStruts()
	if len(struts) > 0 {
		root, err := c.rootArea()
		if err == nil {
			for i := range monitors {
				monitors[i].Usable = applyStruts(monitors[i].Bounds, root, struts)
			}
			return monitors, nil
		}
	}

	if wa, ok := c.workArea(); ok {
		for i := range monitors {
			if usable := monitors[i].Bounds.intersect(wa); !usable.empty() {
				monitors[i].Usable = usable
			}
		}
	}
	return monitors, nil
}

func (c *Connection) rootArea() (Area, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return Area{}, err
	}
	return Area{Width: int(geom.Width), Height: int(geom.Height)}, nil
}

// workArea returns _NET_WORKAREA for the current desktop.
func (c *Connection) workArea() (Area, bool) {
	areas, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(areas) == 0 {
		return Area{}, false
	}
	idx := 0
	if desktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(desktop) < len(areas) {
		idx = int(desktop)
	}
	wa := areas[idx]
	return Area{X: wa.X, Y: wa.Y, Width: int(wa.Width), Height: int(wa.Height)}, true
}

// dockStruts collects the strut reservations of every dock window.
func (c *Connection) dockStruts() []*ewmh.WmStrutPartial {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil
	}

	var out []*ewmh.WmStrutPartial
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
		if err != nil || !slices.Contains(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, win); err == nil {
			out = append(out, sp)
			continue
		}
		// Some docks only set _NET_WM_STRUT; treat it as spanning the whole edge.
		if s, err := ewmh.WmStrutGet(c.XUtil, win); err == nil {
			const whole = ^uint(0) >> 1
			out = append(out, &ewmh.WmStrutPartial{
				Left: s.Left, Right: s.Right, Top: s.Top, Bottom: s.Bottom,
				LeftEndY: whole, RightEndY: whole, TopEndX: whole, BottomEndX: whole,
			})
		}
	}
	return out
}

// applyStruts shrinks monitor by the part of each strut that overlaps it.
// Strut offsets are relative to the root window edges.
func applyStruts(monitor, root Area, struts []*ewmh.WmStrutPartial) Area {
	var top, bottom, left, right int
	for _, sp := range struts {
		if sp.Top > 0 {
			band := Area{X: int(sp.TopStartX), Y: 0, Width: spanLen(sp.TopStartX, sp.TopEndX), Height: int(sp.Top)}
			top = max(top, monitor.intersect(band).Height)
		}
		if sp.Bottom > 0 {
			band := Area{X: int(sp.BottomStartX), Y: root.Height - int(sp.Bottom), Width: spanLen(sp.BottomStartX, sp.BottomEndX), Height: int(sp.Bottom)}
			bottom = max(bottom, monitor.intersect(band).Height)
		}
		if sp.Left > 0 {
			band := Area{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: spanLen(sp.LeftStartY, sp.LeftEndY)}
			left = max(left, monitor.intersect(band).Width)
		}
		if sp.Right > 0 {
			band := Area{X: root.Width - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: spanLen(sp.RightStartY, sp.RightEndY)}
			right = max(right, monitor.intersect(band).Width)
		}
	}

	usable := monitor
	usable.X += left
	usable.Y += top
	usable.Width = max(1, usable.Width-left-right)
	usable.Height = max(1, usable.Height-top-bottom)
	return usable
}

// spanLen converts an inclusive strut range to a length, capped so the
// area arithmetic stays in int range.
func spanLen(start, end uint) int {
	if end < start {
		return 0
	}
	const limit = 1 << 30
	return int(min(end-start+1, limit))
}
