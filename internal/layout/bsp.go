package layout

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// BSP tiles windows by recursively halving the screen. Window placement is
// owned by the tree, so new windows land next to the last focused one.
type BSP struct {
	tree        *Tree
	lastFocused WindowID
	hasFocus    bool
	logger      *slog.Logger
}

// NewBSP returns an empty BSP layout. A nil logger uses slog.Default().
func NewBSP(logger *slog.Logger) *BSP {
	if logger == nil {
		logger = slog.Default()
	}
	return &BSP{tree: NewTree(), logger: logger}
}

func (*BSP) Key() string  { return KeyBSP }
func (*BSP) Name() string { return "Binary Space Partitioning" }

// Tree exposes the layout's tree for inspection.
func (l *BSP) Tree() *Tree { return l.tree }

func (l *BSP) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	if l.tree.Empty() {
		return nil
	}
	active := make(map[WindowID]Window)
	for _, w := range ws.Active() {
		active[w.ID] = w
	}
	if len(active) == 0 {
		return nil
	}

	type item struct {
		idx   int
		frame Rect
	}
	var out []FrameAssignment
	queue := []item{{idx: 0, frame: screen.Frame}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n := l.tree.nodes[cur.idx]

		switch {
		case n.isLeaf() && n.hasID:
			w, ok := active[n.id]
			if !ok {
				l.logger.Warn("bsp window missing from snapshot", "window", n.id)
				continue
			}
			out = append(out, FrameAssignment{
				Frame:       cur.frame,
				Window:      w,
				ScreenFrame: screen.Frame,
				Rules:       ResizeRules{Unconstrained: Horizontal, ScaleFactor: 1},
			})
		case n.left != none && n.right != none && !n.hasID:
			a, b := halve(cur.frame)
			queue = append(queue, item{idx: n.left, frame: a}, item{idx: n.right, frame: b})
		default:
			l.logger.Error("skipping invalid bsp node", "node", cur.idx)
		}
	}
	return out
}

// halve splits r in two along its longer side.
func halve(r Rect) (Rect, Rect) {
	if r.Width >= r.Height {
		a, b := Split(r.Width, 0.5)
		return Rect{X: r.X, Y: r.Y, Width: a, Height: r.Height},
			Rect{X: r.X + a, Y: r.Y, Width: b, Height: r.Height}
	}
	a, b := Split(r.Height, 0.5)
	return Rect{X: r.X, Y: r.Y, Width: r.Width, Height: a},
		Rect{X: r.X, Y: r.Y + a, Width: r.Width, Height: b}
}

func (l *BSP) UpdateWithChange(change Change) {
	switch change.Kind {
	case ChangeAdd:
		if l.hasFocus {
			l.tree.InsertAt(change.Window, l.lastFocused)
		} else {
			l.tree.InsertAtEnd(change.Window)
		}
	case ChangeRemove:
		if !l.tree.Remove(change.Window) {
			l.logger.Warn("bsp remove of unknown window", "window", change.Window)
		}
		if l.hasFocus && l.lastFocused == change.Window {
			l.hasFocus = false
		}
	case ChangeFocus:
		l.lastFocused, l.hasFocus = change.Window, true
	case ChangeSwap:
		l.Swap(change.Window, change.Other)
	}
	l.check()
}

// Reconcile drops ids that are no longer active and appends active windows
// the tree has not seen.
func (l *BSP) Reconcile(ws WindowSet) {
	active := ws.Active()
	keep := make(map[WindowID]bool, len(active))
	for _, w := range active {
		keep[w.ID] = true
	}
	for _, id := range l.tree.OrderedIDs() {
		if !keep[id] {
			l.tree.Remove(id)
		}
	}
	for _, w := range active {
		if l.tree.Contains(w.ID) {
			continue
		}
		if l.hasFocus && l.tree.Contains(l.lastFocused) {
			l.tree.InsertAt(w.ID, l.lastFocused)
		} else {
			l.tree.InsertAtEnd(w.ID)
		}
	}
	if f, ok := ws.Focused(); ok && keep[f.ID] {
		l.lastFocused, l.hasFocus = f.ID, true
	}
	l.check()
}

// Order returns active windows in tree order.
func (l *BSP) Order(ws WindowSet) []WindowID {
	active := make(map[WindowID]bool)
	for _, w := range ws.Active() {
		active[w.ID] = true
	}
	var ids []WindowID
	for _, id := range l.tree.OrderedIDs() {
		if active[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (l *BSP) Swap(a, b WindowID) {
	if !l.tree.Swap(a, b) {
		l.logger.Warn("bsp swap of unknown window", "a", a, "b", b)
	}
}

func (l *BSP) check() {
	if err := l.tree.Validate(); err != nil {
		l.logger.Error("bsp tree invalid", "error", err)
	}
}

func (l *BSP) MarshalState() ([]byte, error) {
	return json.Marshal(l.tree)
}

func (l *BSP) UnmarshalState(data []byte) error {
	next := NewTree()
	if err := json.Unmarshal(data, next); err != nil {
		return fmt.Errorf("decode bsp state: %w", err)
	}
	l.tree = next
	return nil
}
