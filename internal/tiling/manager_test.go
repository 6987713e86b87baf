package tiling

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/tessel/internal/layout"
)

type fakeFocuser struct {
	mu      sync.Mutex
	focused []layout.WindowID
}

func (f *fakeFocuser) Focus(id layout.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, id)
	return nil
}

func (f *fakeFocuser) last() layout.WindowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.focused) == 0 {
		return 0
	}
	return f.focused[len(f.focused)-1]
}

type appFloater map[string]bool

func (f appFloater) Floats(appID, _ string) bool { return f[appID] }

type managerFixture struct {
	m       *Manager
	applier *fakeApplier
	focuser *fakeFocuser
	store   *memoryStore
}

func newManagerFixture(t *testing.T, store *memoryStore, screens ...layout.Screen) *managerFixture {
	t.Helper()
	if store == nil {
		store = newMemoryStore()
	}
	f := &managerFixture{applier: newFakeApplier(), focuser: &fakeFocuser{}, store: store}
	f.m = NewManager(ManagerConfig{
		Options: testOptions(),
		Applier: f.applier,
		Focuser: f.focuser,
		Store:   store,
		Floater: appFloater{"pavucontrol": true},
	})
	if len(screens) == 0 {
		screens = []layout.Screen{{ID: "DP-1", Frame: layout.Rect{Width: 1000, Height: 1000}}}
	}
	f.m.SyncScreens(screens)
	f.m.SetDesktop(0)
	t.Cleanup(f.m.Close)
	return f
}

func (f *managerFixture) add(id layout.WindowID, frame layout.Rect) {
	f.m.WindowAdded(WindowInfo{ID: id, AppID: "term", Frame: frame, Desktop: 0})
}

func (f *managerFixture) reflow(t *testing.T) {
	t.Helper()
	if err := f.m.ReflowAll(context.Background()); err != nil {
		t.Fatalf("reflow all: %v", err)
	}
}

func (f *managerFixture) frameOf(t *testing.T, id layout.WindowID) layout.Rect {
	t.Helper()
	r, ok := f.applier.frame(id)
	if !ok {
		t.Fatalf("window %d was never placed", id)
	}
	return r
}

var onFirst = layout.Rect{X: 100, Y: 100, Width: 200, Height: 200}

func TestManagerTilesPerScreen(t *testing.T) {
	f := newManagerFixture(t, nil,
		layout.Screen{ID: "right", Frame: layout.Rect{X: 1000, Width: 1000, Height: 1000}, X: 1000},
		layout.Screen{ID: "left", Frame: layout.Rect{Width: 1000, Height: 1000}, X: 0},
	)
	if got := f.m.Screens()[0].ID(); got != "left" {
		t.Fatalf("expected screens ordered left to right, got %s first", got)
	}

	f.add(1, onFirst)
	f.add(2, layout.Rect{X: 1200, Y: 100, Width: 200, Height: 200})
	f.add(3, onFirst)
	f.reflow(t)

	if got, want := f.frameOf(t, 2), (layout.Rect{X: 1000, Width: 1000, Height: 1000}); got != want {
		t.Fatalf("expected lone window to fill the right screen %v, got %v", want, got)
	}
	if got, want := f.frameOf(t, 3), (layout.Rect{X: 500, Width: 500, Height: 1000}); got != want {
		t.Fatalf("expected secondary on the left screen %v, got %v", want, got)
	}
}

func TestManagerDesktopFiltering(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.add(1, onFirst)
	f.m.WindowAdded(WindowInfo{ID: 2, Frame: onFirst, Desktop: 1})
	f.m.WindowAdded(WindowInfo{ID: 3, Frame: onFirst, Desktop: AllDesktops})
	f.reflow(t)

	ids := f.applier.lastIDs()
	if !ids[1] || ids[2] || !ids[3] {
		t.Fatalf("expected windows 1 and 3 tiled on desktop 0, got %v", ids)
	}
}

func TestManagerFloatingRules(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.add(1, onFirst)
	f.m.WindowAdded(WindowInfo{ID: 2, AppID: "pavucontrol", Frame: onFirst})
	f.m.WindowAdded(WindowInfo{ID: 3, AppID: "term", Frame: onFirst, Transient: true})
	f.reflow(t)

	ids := f.applier.lastIDs()
	if !ids[1] || ids[2] || ids[3] {
		t.Fatalf("expected only window 1 tiled, got %v", ids)
	}
	if st := f.m.Status(); st.Screens[0].Floating != 2 {
		t.Fatalf("expected 2 floating windows in status, got %d", st.Screens[0].Floating)
	}
}

func TestManagerMainPaneCommands(t *testing.T) {
	f := newManagerFixture(t, nil)
	for id := layout.WindowID(1); id <= 3; id++ {
		f.add(id, onFirst)
	}
	f.m.WindowFocused(1)

	ctx := context.Background()
	if err := f.m.Execute(ctx, CmdExpandMain, ""); err != nil {
		t.Fatalf("expand: %v", err)
	}
	f.reflow(t)
	if got := f.frameOf(t, 1).Width; got != 550 {
		t.Fatalf("expected main width 550 after expand, got %d", got)
	}

	if err := f.m.Execute(ctx, CmdIncreaseMain, ""); err != nil {
		t.Fatalf("increase: %v", err)
	}
	f.reflow(t)
	if got := f.frameOf(t, 2); got.X != 0 || got.Height != 500 {
		t.Fatalf("expected window 2 to join the main pane, got %v", got)
	}

	if err := f.m.Execute(ctx, CmdDecreaseMain, ""); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if err := f.m.Execute(ctx, CmdShrinkMain, ""); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	st := f.m.Status()
	if st.Screens[0].MainPaneCount != 1 || math.Abs(st.Screens[0].MainPaneRatio-0.5) > 1e-9 {
		t.Fatalf("expected count 1 and ratio 0.5, got %d and %v", st.Screens[0].MainPaneCount, st.Screens[0].MainPaneRatio)
	}
}

func TestManagerFocusAndSwap(t *testing.T) {
	f := newManagerFixture(t, nil)
	for id := layout.WindowID(1); id <= 3; id++ {
		f.add(id, onFirst)
	}
	ctx := context.Background()

	if err := f.m.Execute(ctx, CmdSwapMain, ""); !errors.Is(err, ErrNoFocusedWindow) {
		t.Fatalf("expected ErrNoFocusedWindow, got %v", err)
	}

	f.m.WindowFocused(3)
	if err := f.m.Execute(ctx, CmdSwapMain, ""); err != nil {
		t.Fatalf("swap main: %v", err)
	}
	f.reflow(t)
	if got := f.frameOf(t, 3); got.X != 0 || got.Width != 500 {
		t.Fatalf("expected window 3 in the main pane, got %v", got)
	}

	// Order is now 3 2 1.
	if err := f.m.Execute(ctx, CmdFocusCW, ""); err != nil {
		t.Fatalf("focus cw: %v", err)
	}
	if got := f.focuser.last(); got != 2 {
		t.Fatalf("expected focus to move to 2, got %d", got)
	}
	if err := f.m.Execute(ctx, CmdFocusCCW, ""); err != nil {
		t.Fatalf("focus ccw: %v", err)
	}
	if got := f.focuser.last(); got != 3 {
		t.Fatalf("expected focus back on 3, got %d", got)
	}
	if err := f.m.Execute(ctx, CmdSwapCCW, ""); err != nil {
		t.Fatalf("swap ccw: %v", err)
	}
	f.reflow(t)
	// 3 wraps around to the end: 1 2 3.
	if got := f.frameOf(t, 1); got.X != 0 {
		t.Fatalf("expected window 1 back in the main pane, got %v", got)
	}
}

func TestManagerSwapInsideBSP(t *testing.T) {
	f := newManagerFixture(t, nil)
	for id := layout.WindowID(1); id <= 2; id++ {
		f.add(id, onFirst)
	}
	if err := f.m.SelectLayout(layout.KeyBSP); err != nil {
		t.Fatalf("select: %v", err)
	}
	f.reflow(t)
	before := f.frameOf(t, 1)

	f.m.WindowFocused(1)
	if err := f.m.Execute(context.Background(), CmdSwapCW, ""); err != nil {
		t.Fatalf("swap: %v", err)
	}
	f.reflow(t)
	if got := f.frameOf(t, 2); got != before {
		t.Fatalf("expected window 2 to take window 1's place %v, got %v", before, got)
	}
}

func TestManagerToggleFloat(t *testing.T) {
	f := newManagerFixture(t, nil)
	for id := layout.WindowID(1); id <= 3; id++ {
		f.add(id, onFirst)
	}
	f.m.WindowFocused(2)
	if err := f.m.Execute(context.Background(), CmdToggleFloat, ""); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.reflow(t)
	ids := f.applier.lastIDs()
	if ids[2] || !ids[1] || !ids[3] {
		t.Fatalf("expected window 2 floating, got %v", ids)
	}

	// A rules reload leaves the user's choice alone.
	f.m.SetOptions(f.m.Options())
	f.reflow(t)
	if f.applier.lastIDs()[2] {
		t.Fatalf("reload re-tiled a user floated window")
	}
}

func TestManagerToggleTiling(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.add(1, onFirst)
	f.reflow(t)
	calls := f.applier.callCount()

	ctx := context.Background()
	if err := f.m.Execute(ctx, CmdToggleTiling, ""); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	f.reflow(t)
	if f.applier.callCount() != calls {
		t.Fatalf("expected no frames applied while tiling is off")
	}
	if err := f.m.Execute(ctx, CmdToggleTiling, ""); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if f.applier.callCount() == calls {
		t.Fatalf("expected re-enabling tiling to reflow")
	}
}

func TestManagerResizeInference(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.add(1, onFirst)
	f.add(2, onFirst)
	f.reflow(t)

	main := f.frameOf(t, 1)
	main.Width = 600
	f.m.WindowUpdated(WindowInfo{ID: 1, AppID: "term", Frame: main, Desktop: 0})

	st := f.m.Status()
	if math.Abs(st.Screens[0].MainPaneRatio-0.6) > 1e-9 {
		t.Fatalf("expected inferred ratio 0.6, got %v", st.Screens[0].MainPaneRatio)
	}
	f.reflow(t)
	if got := f.frameOf(t, 2); got.X != 600 || got.Width != 400 {
		t.Fatalf("expected secondary to shrink to 400 at 600, got %v", got)
	}

	// Jitter within tolerance is not a resize.
	secondary := f.frameOf(t, 2)
	secondary.Width -= 2
	f.m.WindowUpdated(WindowInfo{ID: 2, AppID: "term", Frame: secondary, Desktop: 0})
	if st := f.m.Status(); math.Abs(st.Screens[0].MainPaneRatio-0.6) > 1e-9 {
		t.Fatalf("expected ratio unchanged, got %v", st.Screens[0].MainPaneRatio)
	}
}

func TestManagerWindowMovesBetweenScreens(t *testing.T) {
	f := newManagerFixture(t, nil,
		layout.Screen{ID: "left", Frame: layout.Rect{Width: 1000, Height: 1000}},
		layout.Screen{ID: "right", Frame: layout.Rect{X: 1000, Width: 1000, Height: 1000}, X: 1000},
	)
	f.add(1, onFirst)
	f.add(2, onFirst)
	f.reflow(t)

	f.m.WindowUpdated(WindowInfo{ID: 2, AppID: "term", Frame: layout.Rect{X: 1400, Y: 400, Width: 300, Height: 300}})
	f.reflow(t)
	if got, want := f.frameOf(t, 2), (layout.Rect{X: 1000, Width: 1000, Height: 1000}); got != want {
		t.Fatalf("expected window 2 to fill the right screen %v, got %v", want, got)
	}
	if got, want := f.frameOf(t, 1), (layout.Rect{Width: 1000, Height: 1000}); got != want {
		t.Fatalf("expected window 1 to fill the left screen %v, got %v", want, got)
	}
}

func TestManagerRemoveScreenReassignsWindows(t *testing.T) {
	f := newManagerFixture(t, nil,
		layout.Screen{ID: "left", Frame: layout.Rect{Width: 1000, Height: 1000}},
		layout.Screen{ID: "right", Frame: layout.Rect{X: 1000, Width: 1000, Height: 1000}, X: 1000},
	)
	f.add(1, onFirst)
	f.add(2, layout.Rect{X: 1200, Y: 100, Width: 200, Height: 200})
	f.reflow(t)

	f.m.SyncScreens([]layout.Screen{{ID: "left", Frame: layout.Rect{Width: 1000, Height: 1000}}})
	f.reflow(t)
	if got := f.frameOf(t, 2); got.X >= 1000 {
		t.Fatalf("expected window 2 pulled onto the remaining screen, got %v", got)
	}
}

func TestManagerPersistsAcrossRestart(t *testing.T) {
	store := newMemoryStore()
	f := newManagerFixture(t, store)
	f.add(1, onFirst)
	f.m.WindowFocused(1)
	ctx := context.Background()
	if err := f.m.Execute(ctx, CmdCycleLayout, ""); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if err := f.m.Execute(ctx, CmdExpandMain, ""); err != nil {
		t.Fatalf("expand: %v", err)
	}
	f.m.Close()

	g := newManagerFixture(t, store)
	st := g.m.Status()
	if st.Screens[0].Layout != layout.KeyWide {
		t.Fatalf("expected wide restored as active, got %s", st.Screens[0].Layout)
	}
	if math.Abs(st.Screens[0].MainPaneRatio-0.55) > 1e-9 {
		t.Fatalf("expected ratio 0.55 restored, got %v", st.Screens[0].MainPaneRatio)
	}
}

func TestManagerCorruptSavedLayoutFallsBack(t *testing.T) {
	store := newMemoryStore()
	_ = store.SaveLayout("DP-1", 0, layout.Encoded{Key: layout.KeyTall, State: []byte(`{"main_pane_ratio":7,"main_pane_count":1}`)})
	f := newManagerFixture(t, store)
	if st := f.m.Status(); st.Screens[0].MainPaneRatio != 0.5 {
		t.Fatalf("expected default ratio, got %v", st.Screens[0].MainPaneRatio)
	}
}

func TestManagerSelectUnconfiguredLayout(t *testing.T) {
	f := newManagerFixture(t, nil)
	err := f.m.Execute(context.Background(), CmdSelectLayout, layout.KeyStage)
	if !errors.Is(err, ErrLayoutNotConfigured) {
		t.Fatalf("expected ErrLayoutNotConfigured, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	for _, cmd := range Commands() {
		if _, err := ParseCommand(string(cmd)); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
	}
	_, err := ParseCommand("explode")
	if !errors.Is(err, ErrUnknownCommand) || !strings.Contains(err.Error(), "explode") {
		t.Fatalf("expected ErrUnknownCommand naming the command, got %v", err)
	}
}

func TestApplyPadding(t *testing.T) {
	frame := layout.Rect{Width: 1000, Height: 800}
	got := ApplyPadding(frame, Padding{Top: 10, Right: 20, Bottom: 30, Left: 40})
	if want := (layout.Rect{X: 40, Y: 10, Width: 940, Height: 760}); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := ApplyPadding(frame, Padding{Left: 600, Right: 600}); got != frame {
		t.Fatalf("expected oversized padding to be ignored, got %v", got)
	}
}
