package layout

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
)

func idsOf(t *Tree) string {
	return fmt.Sprint(t.OrderedIDs())
}

func TestTreeInsertRemoveExample(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 4; i++ {
		tree.InsertAtEnd(WindowID(i))
	}
	if got := idsOf(tree); got != "[0 1 2 3]" {
		t.Fatalf("expected [0 1 2 3], got %s", got)
	}
	if !tree.Remove(1) {
		t.Fatalf("expected remove of 1 to succeed")
	}
	if got := idsOf(tree); got != "[0 2 3]" {
		t.Fatalf("expected [0 2 3], got %s", got)
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("unexpected invalid tree: %v", err)
	}
}

func TestTreeInsertAtFocus(t *testing.T) {
	tree := NewTree()
	tree.InsertAtEnd(1)
	tree.InsertAtEnd(2)
	tree.InsertAtEnd(3)
	tree.InsertAt(9, 2)
	if got := idsOf(tree); got != "[1 2 9 3]" {
		t.Fatalf("expected 9 after 2, got %s", got)
	}
	tree.InsertAt(10, 42)
	if got := idsOf(tree); got != "[1 2 9 3 10]" {
		t.Fatalf("expected unknown focus to insert at end, got %s", got)
	}
}

func TestTreeRemoveToEmpty(t *testing.T) {
	tree := NewTree()
	tree.InsertAtEnd(7)
	tree.Remove(7)
	if !tree.Empty() {
		t.Fatalf("expected empty tree")
	}
	if err := tree.Validate(); err != nil {
		t.Fatalf("unexpected invalid tree: %v", err)
	}
	if tree.Remove(7) {
		t.Fatalf("expected removing a missing id to report false")
	}
}

func TestTreeRemoveUnderRootKeepsRoot(t *testing.T) {
	tree := NewTree()
	tree.InsertAtEnd(1)
	tree.InsertAtEnd(2)
	tree.InsertAtEnd(3)
	// root(1, (2, 3)); removing 1 promotes the (2, 3) subtree into the root.
	tree.Remove(1)
	root := tree.nodes[0]
	if root.isLeaf() {
		t.Fatalf("expected root to take over the sibling's children")
	}
	if tree.nodes[root.left].parent != 0 || tree.nodes[root.right].parent != 0 {
		t.Fatalf("expected promoted children to point at the root")
	}
	if got := idsOf(tree); got != "[2 3]" {
		t.Fatalf("expected [2 3], got %s", got)
	}
}

func TestTreeSwap(t *testing.T) {
	tree := NewTree()
	for i := 1; i <= 4; i++ {
		tree.InsertAtEnd(WindowID(i))
	}
	shape, _ := json.Marshal(stripIDs(tree.encode(0)))
	tree.Swap(1, 4)
	if got := idsOf(tree); got != "[4 2 3 1]" {
		t.Fatalf("expected [4 2 3 1], got %s", got)
	}
	after, _ := json.Marshal(stripIDs(tree.encode(0)))
	if string(shape) != string(after) {
		t.Fatalf("swap changed the tree shape")
	}
	if tree.Swap(1, 99) {
		t.Fatalf("expected swap with a missing id to report false")
	}
}

func stripIDs(n *treeJSON) *treeJSON {
	if n == nil {
		return nil
	}
	out := &treeJSON{Left: stripIDs(n.Left), Right: stripIDs(n.Right)}
	if n.ID != nil {
		zero := WindowID(0)
		out.ID = &zero
	}
	return out
}

func TestTreeInvariantUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tree := NewTree()
	present := map[WindowID]bool{}
	for step := 0; step < 2000; step++ {
		id := WindowID(rng.Intn(20))
		switch rng.Intn(4) {
		case 0:
			tree.InsertAtEnd(id)
			present[id] = true
		case 1:
			focus := WindowID(rng.Intn(20))
			tree.InsertAt(id, focus)
			present[id] = true
		case 2:
			tree.Remove(id)
			delete(present, id)
		case 3:
			tree.Swap(id, WindowID(rng.Intn(20)))
		}
		if err := tree.Validate(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if tree.Len() != len(present) {
			t.Fatalf("step %d: expected %d ids, got %d", step, len(present), tree.Len())
		}
	}
}

func TestTreeJSONRoundTrip(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 6; i++ {
		tree.InsertAtEnd(WindowID(i))
	}
	tree.InsertAt(10, 2)
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewTree()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if idsOf(restored) != idsOf(tree) {
		t.Fatalf("expected %s, got %s", idsOf(tree), idsOf(restored))
	}

	empty := NewTree()
	if err := json.Unmarshal([]byte(`{}`), empty); err != nil || !empty.Empty() {
		t.Fatalf("expected {} to decode to an empty tree, err=%v", err)
	}
}

func TestTreeJSONRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"one child":        `{"left":{"id":1}}`,
		"internal with id": `{"id":3,"left":{"id":1},"right":{"id":2}}`,
		"empty leaf":       `{"left":{"id":1},"right":{}}`,
		"duplicate id":     `{"left":{"id":1},"right":{"id":1}}`,
		"not json":         `{"left":`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			tree := NewTree()
			tree.InsertAtEnd(5)
			if err := json.Unmarshal([]byte(data), tree); err == nil {
				t.Fatalf("expected error")
			}
			if idsOf(tree) != "[5]" {
				t.Fatalf("rejected data modified the tree: %s", idsOf(tree))
			}
		})
	}
}

func TestBSPFrames(t *testing.T) {
	ws := NewWindowSet(testWindows(3))
	l := NewBSP(nil)
	l.Reconcile(ws)
	got := l.Assignments(ws, testScreen(2000, 1000), DefaultSettings())

	// (0, (1, 2)): the screen splits left/right, then the right half
	// (1000x1000) splits left/right again.
	want := map[WindowID]Rect{
		0: {X: 0, Y: 0, Width: 1000, Height: 1000},
		1: {X: 1000, Y: 0, Width: 500, Height: 1000},
		2: {X: 1500, Y: 0, Width: 500, Height: 1000},
	}
	for id, r := range want {
		if f := frameOf(t, got, id); f != r {
			t.Fatalf("window %d: expected %v, got %v", id, r, f)
		}
	}
}

func TestBSPSkipsMissingWindows(t *testing.T) {
	l := NewBSP(nil)
	l.Reconcile(NewWindowSet(testWindows(3)))
	got := l.Assignments(NewWindowSet(testWindows(2)), testScreen(800, 600), DefaultSettings())
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(got))
	}
}

func TestBSPChangesAndOrder(t *testing.T) {
	l := NewBSP(nil)
	l.UpdateWithChange(Change{Kind: ChangeAdd, Window: 1})
	l.UpdateWithChange(Change{Kind: ChangeAdd, Window: 2})
	l.UpdateWithChange(Change{Kind: ChangeAdd, Window: 3})
	l.UpdateWithChange(Change{Kind: ChangeFocus, Window: 1})
	l.UpdateWithChange(Change{Kind: ChangeAdd, Window: 4})
	ws := NewWindowSet([]Window{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}})
	if got := fmt.Sprint(l.Order(ws)); got != "[1 4 2 3]" {
		t.Fatalf("expected new window next to focus, got %s", got)
	}
	l.UpdateWithChange(Change{Kind: ChangeSwap, Window: 1, Other: 3})
	if got := fmt.Sprint(l.Order(ws)); got != "[3 4 2 1]" {
		t.Fatalf("expected swapped order, got %s", got)
	}
	l.UpdateWithChange(Change{Kind: ChangeRemove, Window: 4})
	l.UpdateWithChange(Change{Kind: ChangeRemove, Window: 99})
	if got := fmt.Sprint(l.Tree().OrderedIDs()); got != "[3 2 1]" {
		t.Fatalf("expected [3 2 1], got %s", got)
	}
}

func TestBSPStateRoundTrip(t *testing.T) {
	ws := NewWindowSet(testWindows(5))
	l := NewBSP(nil)
	l.Reconcile(ws)
	l.Swap(0, 3)
	data, err := l.MarshalState()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewBSP(nil)
	if err := restored.UnmarshalState(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	screen := testScreen(1920, 1080)
	a := l.Assignments(ws, screen, DefaultSettings())
	b := restored.Assignments(ws, screen, DefaultSettings())
	for _, x := range a {
		if frameOf(t, b, x.Window.ID) != x.Frame {
			t.Fatalf("window %d differs after restore", x.Window.ID)
		}
	}
}
