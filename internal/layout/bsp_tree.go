package layout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidTree reports a BSP node that is neither a proper leaf nor a
// proper internal node.
var ErrInvalidTree = errors.New("invalid bsp tree")

const none = -1

// bspNode is either a leaf holding a window id or an internal node with two
// children. parent is a navigation link only; ownership flows downward
// through left and right.
type bspNode struct {
	parent int
	left   int
	right  int
	id     WindowID
	hasID  bool
	inUse  bool
}

func (n *bspNode) isLeaf() bool { return n.left == none && n.right == none }

// Tree is a binary space partition of window ids stored in an arena. The
// root always lives at index 0 so its identity survives removals.
type Tree struct {
	nodes []bspNode
	free  []int
}

// NewTree returns an empty tree: a single unpopulated root leaf.
func NewTree() *Tree {
	return &Tree{nodes: []bspNode{{parent: none, left: none, right: none, inUse: true}}}
}

// Empty reports whether the tree holds no windows.
func (t *Tree) Empty() bool {
	root := &t.nodes[0]
	return root.isLeaf() && !root.hasID
}

// Len returns the number of window ids in the tree.
func (t *Tree) Len() int {
	return len(t.OrderedIDs())
}

func (t *Tree) alloc(n bspNode) int {
	n.inUse = true
	if k := len(t.free); k > 0 {
		idx := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[idx] = n
		return idx
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

func (t *Tree) release(idx int) {
	t.nodes[idx] = bspNode{parent: none, left: none, right: none}
	t.free = append(t.free, idx)
}

// InsertAtEnd adds id at the bottom of the rightmost spine. It reports
// false when id is already present.
func (t *Tree) InsertAtEnd(id WindowID) bool {
	if t.Find(id) != none {
		return false
	}
	idx := 0
	for !t.nodes[idx].isLeaf() {
		idx = t.nodes[idx].right
	}
	t.splitLeaf(idx, id)
	return true
}

// InsertAt adds id next to the leaf holding focus. When focus is not in
// the tree the id is inserted at the end.
func (t *Tree) InsertAt(id, focus WindowID) bool {
	if t.Find(id) != none {
		return false
	}
	idx := t.Find(focus)
	if idx == none {
		return t.InsertAtEnd(id)
	}
	t.splitLeaf(idx, id)
	return true
}

// splitLeaf turns the leaf at idx into an internal node whose left child
// keeps the old id and whose right child holds id. An empty root just takes
// the id.
func (t *Tree) splitLeaf(idx int, id WindowID) {
	n := &t.nodes[idx]
	if !n.hasID {
		n.id, n.hasID = id, true
		return
	}
	old := n.id
	left := t.alloc(bspNode{parent: idx, left: none, right: none, id: old, hasID: true})
	right := t.alloc(bspNode{parent: idx, left: none, right: none, id: id, hasID: true})
	n = &t.nodes[idx] // alloc may have grown the arena
	n.left, n.right = left, right
	n.id, n.hasID = 0, false
}

// Remove deletes id and collapses its parent by promoting the sibling
// subtree. It reports false when id is not in the tree.
func (t *Tree) Remove(id WindowID) bool {
	idx := t.Find(id)
	if idx == none {
		return false
	}
	if idx == 0 {
		t.nodes[0].id, t.nodes[0].hasID = 0, false
		return true
	}

	parent := t.nodes[idx].parent
	sibling := t.nodes[parent].left
	if sibling == idx {
		sibling = t.nodes[parent].right
	}

	if parent == 0 {
		s := t.nodes[sibling]
		root := &t.nodes[0]
		root.left, root.right = s.left, s.right
		root.id, root.hasID = s.id, s.hasID
		for _, child := range []int{s.left, s.right} {
			if child != none {
				t.nodes[child].parent = 0
			}
		}
		t.release(sibling)
		t.release(idx)
		return true
	}

	grand := t.nodes[parent].parent
	if t.nodes[grand].left == parent {
		t.nodes[grand].left = sibling
	} else {
		t.nodes[grand].right = sibling
	}
	t.nodes[sibling].parent = grand
	t.release(parent)
	t.release(idx)
	return true
}

// Find returns the arena index of the leaf holding id, or -1.
func (t *Tree) Find(id WindowID) int {
	found := none
	t.walk(0, func(idx int) bool {
		n := &t.nodes[idx]
		if n.isLeaf() && n.hasID && n.id == id {
			found = idx
			return false
		}
		return true
	})
	return found
}

// Contains reports whether id is in the tree.
func (t *Tree) Contains(id WindowID) bool {
	return t.Find(id) != none
}

// OrderedIDs returns the leaf ids in left-to-right order.
func (t *Tree) OrderedIDs() []WindowID {
	var ids []WindowID
	t.walk(0, func(idx int) bool {
		n := &t.nodes[idx]
		if n.isLeaf() && n.hasID {
			ids = append(ids, n.id)
		}
		return true
	})
	return ids
}

// walk visits nodes depth first, left before right, until fn returns false.
func (t *Tree) walk(idx int, fn func(int) bool) bool {
	if idx == none || idx >= len(t.nodes) {
		return true
	}
	if !fn(idx) {
		return false
	}
	n := t.nodes[idx]
	if !t.walk(n.left, fn) {
		return false
	}
	return t.walk(n.right, fn)
}

// Swap exchanges the ids of two leaves. The tree shape is unchanged.
func (t *Tree) Swap(a, b WindowID) bool {
	ia, ib := t.Find(a), t.Find(b)
	if ia == none || ib == none {
		return false
	}
	t.nodes[ia].id, t.nodes[ib].id = t.nodes[ib].id, t.nodes[ia].id
	return true
}

// Validate checks every reachable node: internal nodes have two children
// and no id, leaves have an id and no children. Only an empty root may be
// a leaf without an id. Parent links must point back at the owner.
func (t *Tree) Validate() error {
	if len(t.nodes) == 0 {
		return fmt.Errorf("%w: no root", ErrInvalidTree)
	}
	if t.Empty() {
		return nil
	}
	seen := make(map[WindowID]bool)
	var err error
	t.walk(0, func(idx int) bool {
		n := &t.nodes[idx]
		switch {
		case !n.inUse:
			err = fmt.Errorf("%w: node %d is released", ErrInvalidTree, idx)
		case n.left == none && n.right == none:
			if !n.hasID {
				err = fmt.Errorf("%w: leaf %d has no window", ErrInvalidTree, idx)
			} else if seen[n.id] {
				err = fmt.Errorf("%w: window %s appears twice", ErrInvalidTree, n.id)
			}
			seen[n.id] = true
		case n.left == none || n.right == none:
			err = fmt.Errorf("%w: node %d has one child", ErrInvalidTree, idx)
		case n.hasID:
			err = fmt.Errorf("%w: internal node %d has a window", ErrInvalidTree, idx)
		case t.nodes[n.left].parent != idx || t.nodes[n.right].parent != idx:
			err = fmt.Errorf("%w: children of node %d have wrong parent", ErrInvalidTree, idx)
		}
		return err == nil
	})
	return err
}

// treeJSON is the persisted shape of a tree: a leaf carries an id, an
// internal node carries both children, an empty tree is {}.
type treeJSON struct {
	ID    *WindowID `json:"id,omitempty"`
	Left  *treeJSON `json:"left,omitempty"`
	Right *treeJSON `json:"right,omitempty"`
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.encode(0))
}

func (t *Tree) encode(idx int) *treeJSON {
	n := t.nodes[idx]
	if n.isLeaf() {
		if !n.hasID {
			return &treeJSON{}
		}
		id := n.id
		return &treeJSON{ID: &id}
	}
	return &treeJSON{Left: t.encode(n.left), Right: t.encode(n.right)}
}

// UnmarshalJSON rebuilds the tree and leaves the receiver untouched when
// the data does not describe a valid tree.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var doc treeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode bsp tree: %w", err)
	}
	next := &Tree{}
	next.decode(&doc, none)
	if doc.ID == nil && doc.Left == nil && doc.Right == nil {
		next = NewTree()
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*t = *next
	return nil
}

func (t *Tree) decode(doc *treeJSON, parent int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, bspNode{parent: parent, left: none, right: none, inUse: true})
	if doc.ID != nil {
		t.nodes[idx].id, t.nodes[idx].hasID = *doc.ID, true
	}
	if doc.Left != nil {
		left := t.decode(doc.Left, idx)
		t.nodes[idx].left = left
	}
	if doc.Right != nil {
		right := t.decode(doc.Right, idx)
		t.nodes[idx].right = right
	}
	return idx
}
