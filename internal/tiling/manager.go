package tiling

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/tessel/internal/layout"
)

var (
	ErrNoDesktop           = errors.New("current desktop not known yet")
	ErrUnknownScreen       = errors.New("unknown screen")
	ErrLayoutNotConfigured = errors.New("layout not in the configured cycle")
	ErrNoFocusedWindow     = errors.New("no focused window")
	ErrUnknownCommand      = errors.New("unknown command")
)

// resizeTolerance is how far a window may drift from its applied frame
// before it counts as moved by the user.
const resizeTolerance = 4

// Padding is extra space kept free inside each screen's usable area.
type Padding struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Options are the tiling parameters taken from configuration.
type Options struct {
	// Layouts is the per-desktop layout cycle, first entry active by default.
	Layouts          []string
	TilingEnabled    bool
	Settings         layout.Settings
	Padding          Padding
	NewWindowsToMain bool
	Debounce         time.Duration
	SpaceSwitchDelay time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Layouts:          []string{layout.KeyTall, layout.KeyWide, layout.KeyFullscreen, layout.KeyBSP},
		TilingEnabled:    true,
		Settings:         layout.DefaultSettings(),
		Debounce:         50 * time.Millisecond,
		SpaceSwitchDelay: 300 * time.Millisecond,
	}
}

// Persistence stores layout parameters per screen and desktop.
type Persistence interface {
	LoadLayout(screenID string, desktop int, key string) (layout.Encoded, bool, error)
	SaveLayout(screenID string, desktop int, enc layout.Encoded) error
	LoadActive(screenID string, desktop int) (string, bool, error)
	SaveActive(screenID string, desktop int, key string) error
}

// Recorder receives reflow measurements.
type Recorder interface {
	ReflowCompleted(screenID, layoutKey string, windows int, d time.Duration)
	ReflowCanceled(screenID string)
	ReflowSkipped(screenID, reason string)
	CommandExecuted(command string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ReflowCompleted(string, string, int, time.Duration) {}
func (nopRecorder) ReflowCanceled(string)                              {}
func (nopRecorder) ReflowSkipped(string, string)                       {}
func (nopRecorder) CommandExecuted(string, error)                      {}

// Floater decides whether a new window starts out floating.
type Floater interface {
	Floats(appID, title string) bool
}

// Focuser raises and focuses windows.
type Focuser interface {
	Focus(id layout.WindowID) error
}

// WindowInfo is what the window provider reports about a window.
type WindowInfo struct {
	ID      layout.WindowID
	AppID   string
	Title   string
	Frame   layout.Rect
	Desktop int
	// Transient windows are dialogs and always float.
	Transient bool
}

// AllDesktops marks a window visible on every desktop.
const AllDesktops = -1

type trackedWindow struct {
	info     WindowInfo
	screenID string
	floating bool
	// userToggled windows keep their floating state across rule reloads.
	userToggled bool
}

func (w *trackedWindow) onDesktop(desktop int) bool {
	return w.info.Desktop == AllDesktops || w.info.Desktop == desktop
}

type appliedFrame struct {
	assignment layout.FrameAssignment
	actual     layout.Rect
}

// ManagerConfig wires a Manager's collaborators. Only Applier is required.
type ManagerConfig struct {
	Options  Options
	Registry *layout.Registry
	Applier  FrameApplier
	Focuser  Focuser
	Store    Persistence
	Floater  Floater
	Recorder Recorder
	Logger   *slog.Logger
}

// Manager owns the window model and one ScreenManager per screen.
// Lock order is Manager before ScreenManager; a screen never takes the
// Manager's mutex while holding its own.
type Manager struct {
	registry *layout.Registry
	applier  FrameApplier
	focuser  Focuser
	store    Persistence
	floater  Floater
	recorder Recorder
	logger   *slog.Logger
	opts     atomic.Pointer[Options]

	mu            sync.Mutex
	screens       []*ScreenManager
	windows       map[layout.WindowID]*trackedWindow
	order         []layout.WindowID
	focused       layout.WindowID
	hasFocus      bool
	desktop       int
	hasDesktop    bool
	appliedFrames map[layout.WindowID]appliedFrame
}

// NewManager creates a manager with no screens.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		registry:      cfg.Registry,
		applier:       cfg.Applier,
		focuser:       cfg.Focuser,
		store:         cfg.Store,
		floater:       cfg.Floater,
		recorder:      cfg.Recorder,
		logger:        cfg.Logger,
		windows:       make(map[layout.WindowID]*trackedWindow),
		appliedFrames: make(map[layout.WindowID]appliedFrame),
	}
	if m.registry == nil {
		m.registry = layout.NewRegistry(cfg.Logger)
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	opts := cfg.Options
	m.opts.Store(&opts)
	return m
}

// Options returns the current options.
func (m *Manager) Options() Options {
	return *m.opts.Load()
}

// Registry returns the layout registry.
func (m *Manager) Registry() *layout.Registry {
	return m.registry
}

// SetOptions replaces the options after a configuration reload and
// reflows every screen.
func (m *Manager) SetOptions(opts Options) {
	prev := m.opts.Swap(&opts)

	m.mu.Lock()
	screens := slices.Clone(m.screens)
	for _, w := range m.windows {
		if w.userToggled || m.floater == nil {
			continue
		}
		w.floating = w.info.Transient || m.floater.Floats(w.info.AppID, w.info.Title)
	}
	m.mu.Unlock()

	for _, sm := range screens {
		if !slices.Equal(prev.Layouts, opts.Layouts) {
			sm.resetLayouts(opts.Layouts)
		}
		if prev.Padding != opts.Padding {
			screen := sm.Screen()
			screen.Frame = padFrame(screen.Frame, prev.Padding, opts.Padding)
			sm.SetFrame(screen)
		}
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	}
}

// SyncScreens reconciles the screen list with the displays the provider
// reports. Frames are the usable areas before padding.
func (m *Manager) SyncScreens(screens []layout.Screen) {
	opts := m.Options()
	sort.SliceStable(screens, func(i, j int) bool { return screens[i].X < screens[j].X })

	m.mu.Lock()
	existing := make(map[string]*ScreenManager, len(m.screens))
	for _, sm := range m.screens {
		existing[sm.ID()] = sm
	}

	var (
		next    []*ScreenManager
		updated []*ScreenManager
		frames  []layout.Screen
		added   []*ScreenManager
	)
	for _, s := range screens {
		s.Frame = ApplyPadding(s.Frame, opts.Padding)
		if sm, ok := existing[s.ID]; ok {
			delete(existing, s.ID)
			next = append(next, sm)
			updated = append(updated, sm)
			frames = append(frames, s)
			continue
		}
		sm := newScreenManager(s, m, m.applier, m.recorder, m.logger)
		next = append(next, sm)
		added = append(added, sm)
	}
	m.screens = next

	// Windows on removed screens, or seen before any screen existed, move
	// to whichever screen now holds them.
	moved := false
	for _, w := range m.windows {
		if _, gone := existing[w.screenID]; gone || w.screenID == "" {
			w.screenID = m.screenForLocked(w.info.Frame)
			moved = true
		}
	}
	desktop, hasDesktop := m.desktop, m.hasDesktop
	m.mu.Unlock()

	for _, sm := range existing {
		sm.persistAll()
		sm.Close()
		m.logger.Info("screen removed", "screen", sm.ID())
	}
	for i, sm := range updated {
		sm.SetFrame(frames[i])
	}
	for _, sm := range added {
		m.logger.Info("screen added", "screen", sm.Screen().ID, "frame", sm.Screen().Frame)
		if hasDesktop {
			sm.SetDesktop(desktop)
		}
	}
	if moved {
		for _, sm := range next {
			sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
		}
	}
}

// Screens returns the screen managers ordered left to right.
func (m *Manager) Screens() []*ScreenManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.screens)
}

func (m *Manager) screenByID(id string) (*ScreenManager, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenByIDLocked(id)
}

func (m *Manager) screenByIDLocked(id string) (*ScreenManager, bool) {
	for _, sm := range m.screens {
		if sm.ID() == id {
			return sm, true
		}
	}
	return nil, false
}

// screenForLocked returns the screen containing the frame's center, or
// the leftmost screen.
func (m *Manager) screenForLocked(frame layout.Rect) string {
	if len(m.screens) == 0 {
		return ""
	}
	cx, cy := frame.Center()
	for _, sm := range m.screens {
		s := sm.Screen()
		if s.Frame.Contains(cx, cy) {
			return s.ID
		}
	}
	// Padding can leave the center just outside every tiling frame; fall
	// back to the nearest screen by horizontal position.
	best := m.screens[0].Screen()
	for _, sm := range m.screens[1:] {
		s := sm.Screen()
		if s.Frame.X <= cx {
			best = s
		}
	}
	return best.ID
}

// SetDesktop records a desktop switch.
func (m *Manager) SetDesktop(desktop int) {
	m.mu.Lock()
	if m.hasDesktop && m.desktop == desktop {
		m.mu.Unlock()
		return
	}
	m.desktop, m.hasDesktop = desktop, true
	screens := slices.Clone(m.screens)
	m.mu.Unlock()

	m.logger.Debug("desktop changed", "desktop", desktop)
	for _, sm := range screens {
		sm.SetDesktop(desktop)
	}
}

// WindowAdded starts tracking a window.
func (m *Manager) WindowAdded(info WindowInfo) {
	opts := m.Options()

	m.mu.Lock()
	if _, ok := m.windows[info.ID]; ok {
		m.mu.Unlock()
		m.WindowUpdated(info)
		return
	}
	w := &trackedWindow{
		info:     info,
		screenID: m.screenForLocked(info.Frame),
		floating: info.Transient || (m.floater != nil && m.floater.Floats(info.AppID, info.Title)),
	}
	m.windows[info.ID] = w
	if opts.NewWindowsToMain {
		m.order = slices.Insert(m.order, 0, info.ID)
	} else {
		m.order = append(m.order, info.ID)
	}
	sm, visible := m.visibleScreenLocked(w)
	m.mu.Unlock()

	m.logger.Debug("window added", "window", info.ID, "app", info.AppID, "floating", w.floating)
	if visible && !w.floating {
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeAdd, Window: info.ID})
	}
}

// visibleScreenLocked returns the window's screen when the window is on
// the current desktop.
func (m *Manager) visibleScreenLocked(w *trackedWindow) (*ScreenManager, bool) {
	if !m.hasDesktop || !w.onDesktop(m.desktop) {
		return nil, false
	}
	return m.screenByIDLocked(w.screenID)
}

// WindowRemoved stops tracking a window.
func (m *Manager) WindowRemoved(id layout.WindowID) {
	m.mu.Lock()
	w, ok := m.windows[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.windows, id)
	delete(m.appliedFrames, id)
	m.order = slices.DeleteFunc(m.order, func(x layout.WindowID) bool { return x == id })
	if m.hasFocus && m.focused == id {
		m.hasFocus = false
	}
	sm, ok := m.screenByIDLocked(w.screenID)
	m.mu.Unlock()

	m.logger.Debug("window removed", "window", id)
	if ok {
		// Other desktops drop the window when they next reconcile.
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeRemove, Window: id})
	}
}

// WindowFocused records the focused window.
func (m *Manager) WindowFocused(id layout.WindowID) {
	m.mu.Lock()
	if m.hasFocus && m.focused == id {
		m.mu.Unlock()
		return
	}
	m.focused, m.hasFocus = id, true
	w, ok := m.windows[id]
	var sm *ScreenManager
	visible := false
	if ok {
		sm, visible = m.visibleScreenLocked(w)
	}
	m.mu.Unlock()

	if visible && !w.floating {
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeFocus, Window: id})
	}
}

// WindowUpdated handles a change of desktop, title or frame.
func (m *Manager) WindowUpdated(info WindowInfo) {
	m.mu.Lock()
	w, ok := m.windows[info.ID]
	if !ok {
		m.mu.Unlock()
		return
	}
	prev := w.info
	w.info = info
	oldScreen := w.screenID
	newScreen := m.screenForLocked(info.Frame)
	applied, hasApplied := m.appliedFrames[info.ID]
	floating := w.floating
	m.mu.Unlock()

	if floating {
		m.mu.Lock()
		w.screenID = newScreen
		m.mu.Unlock()
		return
	}

	switch {
	case prev.Desktop != info.Desktop:
		if sm, ok := m.screenByID(oldScreen); ok {
			sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
		}
	case newScreen != oldScreen && newScreen != "":
		m.mu.Lock()
		w.screenID = newScreen
		delete(m.appliedFrames, info.ID)
		m.mu.Unlock()
		if sm, ok := m.screenByID(oldScreen); ok {
			sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeRemove, Window: info.ID})
		}
		if sm, ok := m.screenByID(newScreen); ok {
			sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeAdd, Window: info.ID})
		}
	case hasApplied && drifted(applied.actual, info.Frame):
		m.userMoved(oldScreen, applied, info.Frame)
	}
}

func drifted(a, b layout.Rect) bool {
	return abs(a.X-b.X) > resizeTolerance || abs(a.Y-b.Y) > resizeTolerance ||
		abs(a.Width-b.Width) > resizeTolerance || abs(a.Height-b.Height) > resizeTolerance
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// userMoved reacts to a tiled window the user moved or resized. A resize
// of a paned layout's window is turned into a new main pane ratio; any
// other drift is snapped back by a reflow.
func (m *Manager) userMoved(screenID string, applied appliedFrame, observed layout.Rect) {
	sm, ok := m.screenByID(screenID)
	if !ok || sm.State() != StateIdle {
		return
	}

	resized := abs(applied.actual.Width-observed.Width) > resizeTolerance ||
		abs(applied.actual.Height-observed.Height) > resizeTolerance
	if resized {
		// Infer against the frame the window actually accepted so margins
		// and minimum sizes don't skew the ratio.
		base := applied.assignment
		base.Frame = applied.actual
		ratio := base.ImpliedMainPaneRatio(observed)
		if ratio >= 0 {
			_ = sm.WithActiveLayout(func(l layout.Layout) {
				if p, ok := l.(layout.PanedLayout); ok {
					p.RecommendMainPaneRatio(ratio)
					m.logger.Debug("main pane ratio inferred", "window", applied.assignment.Window.ID, "ratio", ratio)
				}
			})
		}
	}
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
}

// SetFullscreen marks a screen as covered by a fullscreen window.
func (m *Manager) SetFullscreen(screenID string, fullscreen bool) {
	if sm, ok := m.screenByID(screenID); ok {
		sm.SetFullscreen(fullscreen)
	}
}

// ScreenFor returns the id of the screen holding frame.
func (m *Manager) ScreenFor(frame layout.Rect) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screenForLocked(frame)
}

// ReflowAll reflows every screen concurrently and waits for all of them.
func (m *Manager) ReflowAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sm := range m.Screens() {
		g.Go(func() error {
			return sm.Reflow(ctx)
		})
	}
	return g.Wait()
}

// Close persists every layout and stops all screens.
func (m *Manager) Close() {
	for _, sm := range m.Screens() {
		sm.persistAll()
		sm.Close()
	}
}

// screenHost implementation.

func (m *Manager) options() Options {
	return m.Options()
}

func (m *Manager) snapshot(screenID string, desktop int) layout.WindowSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	var windows []layout.Window
	members := make(map[layout.WindowID]layout.Window)
	floating := make(map[layout.WindowID]bool)
	for _, id := range m.order {
		w := m.windows[id]
		if w.screenID != screenID || !w.onDesktop(desktop) {
			continue
		}
		lw := layout.Window{ID: id, Frame: w.info.Frame, Focused: m.hasFocus && m.focused == id}
		windows = append(windows, lw)
		members[id] = lw
		if w.floating {
			floating[id] = true
		}
	}
	return layout.WindowSet{
		Windows:    windows,
		IsActive:   func(id layout.WindowID) bool { _, ok := members[id]; return ok },
		IsFloating: func(id layout.WindowID) bool { return floating[id] },
		Resolve: func(id layout.WindowID) (layout.Window, bool) {
			w, ok := members[id]
			return w, ok
		},
	}
}

func (m *Manager) newLayout(screenID string, desktop int, key string) layout.Layout {
	l, err := m.registry.New(key)
	if err != nil {
		m.logger.Error("layout unavailable, falling back to floating", "layout", key, "error", err)
		return layout.NewFloating()
	}
	if m.store == nil {
		return l
	}
	enc, ok, err := m.store.LoadLayout(screenID, desktop, key)
	if err != nil {
		m.logger.Warn("load saved layout failed", "layout", key, "screen", screenID, "desktop", desktop, "error", err)
		return l
	}
	if !ok {
		return l
	}
	restored, err := m.registry.Decode(enc)
	if err != nil {
		m.logger.Warn("saved layout rejected, using defaults", "layout", key, "screen", screenID, "desktop", desktop, "error", err)
	}
	if restored == nil {
		return l
	}
	return restored
}

func (m *Manager) restoreActive(screenID string, desktop int) string {
	if m.store == nil {
		return ""
	}
	key, ok, err := m.store.LoadActive(screenID, desktop)
	if err != nil {
		m.logger.Warn("load active layout failed", "screen", screenID, "desktop", desktop, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return key
}

func (m *Manager) persist(screenID string, desktop int, l layout.Layout) {
	if m.store == nil {
		return
	}
	enc, err := layout.Encode(l)
	if err != nil {
		m.logger.Warn("encode layout failed", "layout", l.Key(), "error", err)
		return
	}
	if err := m.store.SaveLayout(screenID, desktop, enc); err != nil {
		m.logger.Warn("save layout failed", "layout", l.Key(), "error", err)
	}
}

func (m *Manager) persistActive(screenID string, desktop int, key string) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveActive(screenID, desktop, key); err != nil {
		m.logger.Warn("save active layout failed", "layout", key, "error", err)
	}
}

func (m *Manager) applied(screenID string, assignments []layout.FrameAssignment, frames map[layout.WindowID]layout.Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assignments {
		frame, ok := frames[a.Window.ID]
		if !ok {
			continue
		}
		if w, ok := m.windows[a.Window.ID]; ok {
			w.info.Frame = frame
			m.appliedFrames[a.Window.ID] = appliedFrame{assignment: a, actual: frame}
		}
	}
}

// ApplyPadding shrinks frame by padding. Padding that would leave no
// usable space is ignored.
func ApplyPadding(frame layout.Rect, p Padding) layout.Rect {
	padded := frame.Inset(p.Top, p.Right, p.Bottom, p.Left)
	if padded.Empty() {
		return frame
	}
	return padded
}

// padFrame swaps one padding for another on an already padded frame.
func padFrame(frame layout.Rect, old, next Padding) layout.Rect {
	unpadded := layout.Rect{
		X:      frame.X - old.Left,
		Y:      frame.Y - old.Top,
		Width:  frame.Width + old.Left + old.Right,
		Height: frame.Height + old.Top + old.Bottom,
	}
	return ApplyPadding(unpadded, next)
}
