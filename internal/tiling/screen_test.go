package tiling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
)

// fakeHost serves a fixed window list and builds layouts with make.
type fakeHost struct {
	mu        sync.Mutex
	opts      Options
	windows   []layout.Window
	make      func(key string) layout.Layout
	desktops  []int
	active    map[int]string
	persisted int
}

func newFakeHost(n int) *fakeHost {
	var windows []layout.Window
	for i := 1; i <= n; i++ {
		windows = append(windows, layout.Window{ID: layout.WindowID(i)})
	}
	registry := layout.NewRegistry(nil)
	return &fakeHost{
		opts:    testOptions(),
		windows: windows,
		make: func(key string) layout.Layout {
			l, err := registry.New(key)
			if err != nil {
				panic(err)
			}
			return l
		},
		active: map[int]string{},
	}
}

func (h *fakeHost) setOptions(fn func(*Options)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.opts)
}

func (h *fakeHost) options() Options {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts
}

func (h *fakeHost) snapshot(_ string, desktop int) layout.WindowSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.desktops = append(h.desktops, desktop)
	return layout.NewWindowSet(append([]layout.Window(nil), h.windows...))
}

func (h *fakeHost) lastDesktop() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.desktops) == 0 {
		return -1
	}
	return h.desktops[len(h.desktops)-1]
}

func (h *fakeHost) newLayout(_ string, _ int, key string) layout.Layout { return h.make(key) }
func (h *fakeHost) restoreActive(string, int) string                    { return "" }

func (h *fakeHost) persist(string, int, layout.Layout) {
	h.mu.Lock()
	h.persisted++
	h.mu.Unlock()
}

func (h *fakeHost) persistActive(_ string, desktop int, key string) {
	h.mu.Lock()
	h.active[desktop] = key
	h.mu.Unlock()
}

func (h *fakeHost) applied(string, []layout.FrameAssignment, map[layout.WindowID]layout.Rect) {}

func testScreenManager(h *fakeHost, a FrameApplier, r Recorder) *ScreenManager {
	screen := layout.Screen{ID: "DP-1", Frame: layout.Rect{Width: 1000, Height: 1000}}
	return newScreenManager(screen, h, a, r, nil)
}

func TestScreenReflowsOnceDesktopKnown(t *testing.T) {
	h := newFakeHost(3)
	a := newFakeApplier()
	sm := testScreenManager(h, a, nil)
	defer sm.Close()

	sm.SetDesktop(0)
	a.wait(t)

	f, ok := a.frame(1)
	if !ok {
		t.Fatalf("expected window 1 to be placed")
	}
	if want := (layout.Rect{Width: 500, Height: 1000}); f != want {
		t.Fatalf("expected main frame %v, got %v", want, f)
	}
	waitFor(t, "idle state", func() bool { return sm.State() == StateIdle })
}

func TestScreenDebounceCollapsesRequests(t *testing.T) {
	h := newFakeHost(2)
	h.setOptions(func(o *Options) { o.Debounce = 40 * time.Millisecond })
	a := newFakeApplier()
	sm := testScreenManager(h, a, nil)
	defer sm.Close()

	sm.SetDesktop(0)
	for i := 0; i < 10; i++ {
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeFocus, Window: layout.WindowID(i%2 + 1)})
	}
	if sm.State() != StatePending {
		t.Fatalf("expected pending state, got %s", sm.State())
	}
	a.wait(t)
	time.Sleep(120 * time.Millisecond)
	if n := a.callCount(); n != 1 {
		t.Fatalf("expected a single reflow, got %d", n)
	}
}

func TestScreenSkipConditions(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *fakeHost, sm *ScreenManager)
		want  string
	}{
		{"no desktop", func(*fakeHost, *ScreenManager) {}, skipNoDesktop},
		{"tiling disabled", func(h *fakeHost, sm *ScreenManager) {
			h.setOptions(func(o *Options) { o.TilingEnabled = false })
			sm.SetDesktop(0)
		}, skipDisabled},
		{"fullscreen", func(h *fakeHost, sm *ScreenManager) {
			sm.SetFullscreen(true)
			sm.SetDesktop(0)
		}, skipFullscreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newFakeHost(2)
			a := newFakeApplier()
			r := newFakeRecorder()
			sm := testScreenManager(h, a, r)
			defer sm.Close()

			tc.setup(h, sm)
			sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
			if got := r.waitSkip(t); got != tc.want {
				t.Fatalf("expected skip %q, got %q", tc.want, got)
			}
			waitFor(t, "idle state", func() bool { return sm.State() == StateIdle })
			if n := a.callCount(); n != 0 {
				t.Fatalf("expected no frames applied, got %d batches", n)
			}
		})
	}
}

func TestScreenDesktopSwitchWaitsForAnimation(t *testing.T) {
	h := newFakeHost(2)
	a := newFakeApplier()
	r := newFakeRecorder()
	sm := testScreenManager(h, a, r)
	defer sm.Close()

	sm.SetDesktop(0)
	a.wait(t)

	h.setOptions(func(o *Options) { o.SpaceSwitchDelay = 80 * time.Millisecond })
	sm.SetDesktop(1)
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeAdd, Window: 2})
	if got := r.waitSkip(t); got != skipAnimating {
		t.Fatalf("expected skip %q during the switch, got %q", skipAnimating, got)
	}

	a.wait(t)
	if d := h.lastDesktop(); d != 1 {
		t.Fatalf("expected reflow for desktop 1, got %d", d)
	}
}

func TestScreenFullscreenExitReflows(t *testing.T) {
	h := newFakeHost(1)
	a := newFakeApplier()
	sm := testScreenManager(h, a, nil)
	defer sm.Close()

	sm.SetFullscreen(true)
	sm.SetDesktop(0)
	time.Sleep(20 * time.Millisecond)
	if a.callCount() != 0 {
		t.Fatalf("expected no reflow while fullscreen")
	}
	sm.SetFullscreen(false)
	a.wait(t)
}

// blockingLayout parks its first Assignments call until released.
type blockingLayout struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *blockingLayout) Key() string  { return "blocking" }
func (l *blockingLayout) Name() string { return "Blocking" }

func (l *blockingLayout) Assignments(ws layout.WindowSet, screen layout.Screen, _ layout.Settings) []layout.FrameAssignment {
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
	var out []layout.FrameAssignment
	for _, w := range ws.Active() {
		out = append(out, layout.FrameAssignment{Frame: screen.Frame, Window: w, ScreenFrame: screen.Frame})
	}
	return out
}

func TestScreenNewRequestCancelsInFlightReflow(t *testing.T) {
	h := newFakeHost(2)
	blocking := &blockingLayout{entered: make(chan struct{}), release: make(chan struct{})}
	h.make = func(string) layout.Layout { return blocking }
	a := newFakeApplier()
	r := newFakeRecorder()
	sm := testScreenManager(h, a, r)
	defer sm.Close()

	sm.SetDesktop(0)
	select {
	case <-blocking.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first reflow never started")
	}
	if sm.State() != StateReflowing {
		t.Fatalf("expected reflowing state, got %s", sm.State())
	}

	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeAdd, Window: 2})
	close(blocking.release)

	a.wait(t)
	waitFor(t, "idle state", func() bool { return sm.State() == StateIdle })
	time.Sleep(30 * time.Millisecond)
	if n := a.callCount(); n != 1 {
		t.Fatalf("expected only the second reflow to apply, got %d batches", n)
	}
	if n := r.canceledCount(); n != 1 {
		t.Fatalf("expected one canceled reflow, got %d", n)
	}
}

func TestScreenDesktopSwitchCancelsInFlightReflow(t *testing.T) {
	h := newFakeHost(2)
	blocking := &blockingLayout{entered: make(chan struct{}), release: make(chan struct{})}
	h.make = func(string) layout.Layout { return blocking }
	a := newFakeApplier()
	r := newFakeRecorder()
	sm := testScreenManager(h, a, r)
	defer sm.Close()

	sm.SetDesktop(0)
	select {
	case <-blocking.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first reflow never started")
	}

	h.setOptions(func(o *Options) { o.SpaceSwitchDelay = 300 * time.Millisecond })
	sm.SetDesktop(1)
	if sm.State() != StateIdle {
		t.Fatalf("expected idle state during the switch, got %s", sm.State())
	}
	close(blocking.release)

	waitFor(t, "canceled reflow", func() bool { return r.canceledCount() == 1 })
	time.Sleep(50 * time.Millisecond)
	if n := a.callCount(); n != 0 {
		t.Fatalf("expected no frames applied during the switch, got %d batches", n)
	}

	a.wait(t)
	if d := h.lastDesktop(); d != 1 {
		t.Fatalf("expected reflow for desktop 1, got %d", d)
	}
}

func TestScreenCycleAndSelect(t *testing.T) {
	h := newFakeHost(2)
	sm := testScreenManager(h, newFakeApplier(), nil)
	defer sm.Close()

	if _, err := sm.CycleLayout(1); !errors.Is(err, ErrNoDesktop) {
		t.Fatalf("expected ErrNoDesktop before a desktop is known, got %v", err)
	}
	sm.SetDesktop(0)

	steps := []struct {
		step int
		want string
	}{
		{1, layout.KeyWide},
		{1, layout.KeyBSP},
		{1, layout.KeyTall},
		{-2, layout.KeyWide},
	}
	for _, s := range steps {
		got, err := sm.CycleLayout(s.step)
		if err != nil {
			t.Fatalf("cycle: %v", err)
		}
		if got != s.want {
			t.Fatalf("expected %s, got %s", s.want, got)
		}
	}

	if err := sm.SelectLayout(layout.KeyBSP); err != nil {
		t.Fatalf("select: %v", err)
	}
	if h.active[0] != layout.KeyBSP {
		t.Fatalf("expected active layout persisted, got %q", h.active[0])
	}
	if err := sm.SelectLayout(layout.KeyStage); !errors.Is(err, ErrLayoutNotConfigured) {
		t.Fatalf("expected ErrLayoutNotConfigured, got %v", err)
	}

	// Each desktop keeps its own cycle position.
	sm.SetDesktop(1)
	var key string
	_ = sm.viewActiveLayout(func(l layout.Layout) { key = l.Key() })
	if key != layout.KeyTall {
		t.Fatalf("expected desktop 1 to start on tall, got %s", key)
	}
}

func TestScreenResetLayoutsKeepsInstances(t *testing.T) {
	h := newFakeHost(2)
	sm := testScreenManager(h, newFakeApplier(), nil)
	defer sm.Close()
	sm.SetDesktop(0)

	if err := sm.SelectLayout(layout.KeyWide); err != nil {
		t.Fatalf("select: %v", err)
	}
	_ = sm.WithActiveLayout(func(l layout.Layout) {
		l.(layout.PanedLayout).RecommendMainPaneRatio(0.7)
	})

	sm.resetLayouts([]string{layout.KeyStage, layout.KeyWide})
	var ratio float64
	_ = sm.viewActiveLayout(func(l layout.Layout) {
		if p, ok := l.(layout.PanedLayout); ok {
			ratio = p.MainPaneRatio()
		}
	})
	if ratio != 0.7 {
		t.Fatalf("expected the wide instance to survive with ratio 0.7, got %v", ratio)
	}
}

func TestScreenSynchronousReflow(t *testing.T) {
	h := newFakeHost(2)
	a := newFakeApplier()
	sm := testScreenManager(h, a, nil)
	defer sm.Close()
	sm.SetDesktop(0)

	if err := sm.Reflow(context.Background()); err != nil {
		t.Fatalf("reflow: %v", err)
	}
	if sm.State() != StateIdle {
		t.Fatalf("expected idle after a synchronous reflow, got %s", sm.State())
	}
	if !a.lastIDs()[2] {
		t.Fatalf("expected window 2 in the applied batch")
	}
}
