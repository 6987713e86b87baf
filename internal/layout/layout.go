package layout

import (
	"encoding/json"
	"fmt"
)

// Layout computes frame assignments for the active windows of a set.
// Implementations are not safe for concurrent use; the owning screen
// serializes commands and reflows per instance.
type Layout interface {
	Key() string
	Name() string
	Assignments(ws WindowSet, screen Screen, s Settings) []FrameAssignment
}

// PanedLayout is implemented by layouts with a main pane.
type PanedLayout interface {
	Layout
	MainPaneRatio() float64
	MainPaneCount() int
	RecommendMainPaneRatio(ratio float64)
	ShrinkMainPane(step float64)
	ExpandMainPane(step float64)
	IncreaseMainPaneCount()
	DecreaseMainPaneCount()
}

// CommandLayout is implemented by layouts exposing a small fixed set of
// extra commands, numbered 1 to 4.
type CommandLayout interface {
	Layout
	Commands() map[int]string
	Command(n int, focused WindowID)
}

// ChangeAware layouts keep state derived from window events.
type ChangeAware interface {
	Layout
	UpdateWithChange(change Change)
	// Reconcile brings the layout's state in line with a full window set.
	Reconcile(ws WindowSet)
}

// Orderer is implemented by layouts whose traversal order differs from
// the window set order.
type Orderer interface {
	Layout
	Order(ws WindowSet) []WindowID
}

// Swapper is implemented by layouts that own window placement, so swapping
// two windows must go through the layout instead of the window order.
type Swapper interface {
	Layout
	Swap(a, b WindowID)
}

// Codec layouts persist their parameters.
type Codec interface {
	MarshalState() ([]byte, error)
	// UnmarshalState must reject out of range or structurally invalid state
	// without modifying the receiver.
	UnmarshalState(data []byte) error
}

// ChangeKind classifies what triggered a reflow.
type ChangeKind int

const (
	ChangeUnknown ChangeKind = iota
	ChangeAdd
	ChangeRemove
	ChangeFocus
	ChangeSwap
	ChangeLayout
	ChangeSpace
)

var changeNames = map[ChangeKind]string{
	ChangeUnknown: "unknown",
	ChangeAdd:     "add",
	ChangeRemove:  "remove",
	ChangeFocus:   "focus",
	ChangeSwap:    "swap",
	ChangeLayout:  "layout",
	ChangeSpace:   "space",
}

func (k ChangeKind) String() string {
	if name, ok := changeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("change(%d)", int(k))
}

// Change is the hint handed to a layout describing what changed since the
// last reflow. Only the newest hint survives debouncing.
type Change struct {
	Kind   ChangeKind
	Window WindowID
	// Other is the second window of a swap.
	Other WindowID
}

// panes holds the parameters shared by every main-pane layout.
type panes struct {
	Ratio float64 `json:"main_pane_ratio"`
	Count int     `json:"main_pane_count"`
}

func defaultPanes() panes {
	return panes{Ratio: 0.5, Count: 1}
}

func (p *panes) MainPaneRatio() float64 { return p.Ratio }

func (p *panes) MainPaneCount() int {
	if p.Count < 1 {
		return 1
	}
	return p.Count
}

func (p *panes) RecommendMainPaneRatio(ratio float64) {
	p.Ratio = ClampRatio(ratio)
}

func (p *panes) ShrinkMainPane(step float64) {
	p.RecommendMainPaneRatio(p.Ratio - step)
}

func (p *panes) ExpandMainPane(step float64) {
	p.RecommendMainPaneRatio(p.Ratio + step)
}

func (p *panes) IncreaseMainPaneCount() {
	p.Count = p.MainPaneCount() + 1
}

func (p *panes) DecreaseMainPaneCount() {
	if p.Count > 1 {
		p.Count--
	}
}

func (p *panes) MarshalState() ([]byte, error) {
	return json.Marshal(p)
}

func (p *panes) UnmarshalState(data []byte) error {
	var next panes
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("decode pane state: %w", err)
	}
	if next.Ratio < 0 || next.Ratio > 1 || next.Ratio != next.Ratio {
		return fmt.Errorf("main pane ratio %v out of range", next.Ratio)
	}
	if next.Count < 1 {
		return fmt.Errorf("main pane count %d must be at least 1", next.Count)
	}
	*p = next
	return nil
}

// split returns the main group size and whether anything is left for the
// secondary panes.
func (p *panes) split(n int) (main int, rest int) {
	main = min(n, p.MainPaneCount())
	return main, n - main
}
