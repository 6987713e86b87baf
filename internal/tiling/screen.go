package tiling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
)

// ReflowState is where a screen is in its reflow cycle.
type ReflowState int

const (
	StateIdle ReflowState = iota
	// StatePending means a debounce timer is armed.
	StatePending
	// StateReflowing means a cancelable reflow is computing or applying.
	StateReflowing
)

func (s ReflowState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReflowing:
		return "reflowing"
	default:
		return "idle"
	}
}

// Reasons a due reflow is skipped.
const (
	skipNoDesktop  = "no_desktop"
	skipDisabled   = "tiling_disabled"
	skipFullscreen = "fullscreen"
	skipAnimating  = "animating"
)

// screenHost is the part of the Manager a ScreenManager calls back into.
// A ScreenManager never calls it with its own mutex held except for
// options, newLayout and restoreActive, which must not lock the Manager.
type screenHost interface {
	options() Options
	snapshot(screenID string, desktop int) layout.WindowSet
	newLayout(screenID string, desktop int, key string) layout.Layout
	restoreActive(screenID string, desktop int) string
	persist(screenID string, desktop int, l layout.Layout)
	persistActive(screenID string, desktop int, key string)
	applied(screenID string, assignments []layout.FrameAssignment, frames map[layout.WindowID]layout.Rect)
}

// slot is one configured layout on one desktop. Its mutex covers a single
// command or reflow computation.
type slot struct {
	mu     sync.Mutex
	key    string
	layout layout.Layout
}

// desktopLayouts holds the layout cycle of one desktop.
type desktopLayouts struct {
	slots  []*slot
	active int
}

func (d *desktopLayouts) current() *slot {
	if len(d.slots) == 0 {
		return nil
	}
	return d.slots[d.active]
}

// ScreenManager schedules and runs reflows for one physical screen.
type ScreenManager struct {
	id       string
	host     screenHost
	applier  FrameApplier
	recorder Recorder
	logger   *slog.Logger

	mu         sync.Mutex
	screen     layout.Screen
	desktop    int
	hasDesktop bool
	desktops   map[int]*desktopLayouts
	state      ReflowState
	pending    layout.Change
	timer      *time.Timer
	cancel     context.CancelFunc
	generation uint64
	fullscreen bool
	animating  bool
	animTimer  *time.Timer
	closed     bool
}

func newScreenManager(screen layout.Screen, host screenHost, applier FrameApplier, recorder Recorder, logger *slog.Logger) *ScreenManager {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenManager{
		id:       screen.ID,
		host:     host,
		applier:  applier,
		recorder: recorder,
		logger:   logger.With("screen", screen.ID),
		screen:   screen,
		desktops: make(map[int]*desktopLayouts),
	}
}

// ID returns the screen's stable identifier.
func (sm *ScreenManager) ID() string { return sm.id }

// Screen returns the screen's current geometry.
func (sm *ScreenManager) Screen() layout.Screen {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.screen
}

// State returns the reflow state.
func (sm *ScreenManager) State() ReflowState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// SetFrame updates the screen geometry and reflows when it changed.
func (sm *ScreenManager) SetFrame(screen layout.Screen) {
	screen.ID = sm.id
	sm.mu.Lock()
	changed := sm.screen != screen
	sm.screen = screen
	sm.mu.Unlock()
	if changed {
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	}
}

// SetNeedsReflow cancels any in-flight reflow, forwards change to a
// change-aware layout and re-arms the debounce timer. Only the newest
// change survives until the timer fires.
func (sm *ScreenManager) SetNeedsReflow(change layout.Change) {
	delay := sm.host.options().Debounce

	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return
	}
	sm.stopLocked()
	sm.generation++
	gen := sm.generation
	sm.pending = change
	sm.state = StatePending
	sm.timer = time.AfterFunc(delay, func() { sm.fire(gen) })
	current := sm.activeSlotLocked()
	sm.mu.Unlock()

	if current == nil {
		return
	}
	// Only change-aware layouts need the slot; others may still be busy
	// in a canceled computation.
	if ca, ok := current.layout.(layout.ChangeAware); ok {
		current.mu.Lock()
		ca.UpdateWithChange(change)
		current.mu.Unlock()
	}
}

// stopLocked disarms the debounce timer and cancels an in-flight reflow.
func (sm *ScreenManager) stopLocked() {
	if sm.timer != nil {
		sm.timer.Stop()
		sm.timer = nil
	}
	if sm.cancel != nil {
		sm.cancel()
		sm.cancel = nil
	}
}

func (sm *ScreenManager) fire(gen uint64) {
	job, ok := sm.begin(context.Background(), gen)
	if !ok {
		return
	}
	go func() {
		if err := sm.run(job); err != nil && !errors.Is(err, context.Canceled) {
			sm.logger.Warn("reflow failed", "error", err)
		}
	}()
}

// Reflow runs a reflow synchronously, superseding any pending or running one.
func (sm *ScreenManager) Reflow(ctx context.Context) error {
	sm.mu.Lock()
	if sm.closed {
		sm.mu.Unlock()
		return nil
	}
	sm.stopLocked()
	sm.generation++
	gen := sm.generation
	sm.pending = layout.Change{Kind: layout.ChangeUnknown}
	sm.state = StatePending
	sm.mu.Unlock()

	job, ok := sm.begin(ctx, gen)
	if !ok {
		return nil
	}
	return sm.run(job)
}

type reflowJob struct {
	ctx        context.Context
	generation uint64
	screen     layout.Screen
	desktop    int
	slot       *slot
	change     layout.Change
}

// begin moves a pending generation into the reflowing state, or reports
// why it can't.
func (sm *ScreenManager) begin(parent context.Context, gen uint64) (reflowJob, bool) {
	opts := sm.host.options()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed || gen != sm.generation || sm.state != StatePending {
		return reflowJob{}, false
	}
	sm.timer = nil

	if reason := sm.skipReasonLocked(opts); reason != "" {
		sm.state = StateIdle
		sm.logger.Debug("reflow skipped", "reason", reason, "change", sm.pending.Kind)
		sm.recorder.ReflowSkipped(sm.screen.ID, reason)
		return reflowJob{}, false
	}

	ctx, cancel := context.WithCancel(parent)
	sm.cancel = cancel
	sm.state = StateReflowing
	return reflowJob{
		ctx:        ctx,
		generation: gen,
		screen:     sm.screen,
		desktop:    sm.desktop,
		slot:       sm.activeSlotLocked(),
		change:     sm.pending,
	}, true
}

func (sm *ScreenManager) skipReasonLocked(opts Options) string {
	switch {
	case !sm.hasDesktop:
		return skipNoDesktop
	case !opts.TilingEnabled:
		return skipDisabled
	case sm.fullscreen:
		return skipFullscreen
	case sm.animating:
		return skipAnimating
	}
	return ""
}

func (sm *ScreenManager) run(job reflowJob) error {
	defer sm.finish(job.generation)
	start := time.Now()

	ws := sm.host.snapshot(job.screen.ID, job.desktop)
	settings := sm.host.options().Settings

	job.slot.mu.Lock()
	if err := job.ctx.Err(); err != nil {
		job.slot.mu.Unlock()
		sm.recorder.ReflowCanceled(job.screen.ID)
		return err
	}
	if ca, ok := job.slot.layout.(layout.ChangeAware); ok {
		ca.Reconcile(ws)
	}
	assignments := job.slot.layout.Assignments(ws, job.screen, settings)
	job.slot.mu.Unlock()

	if err := job.ctx.Err(); err != nil {
		sm.recorder.ReflowCanceled(job.screen.ID)
		return err
	}

	frames, err := sm.applier.Apply(job.ctx, assignments, settings)
	sm.host.applied(job.screen.ID, assignments, frames)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			sm.recorder.ReflowCanceled(job.screen.ID)
		}
		return err
	}

	elapsed := time.Since(start)
	sm.recorder.ReflowCompleted(job.screen.ID, job.slot.key, len(assignments), elapsed)
	sm.logger.Debug("reflow complete",
		"layout", job.slot.key,
		"change", job.change.Kind,
		"windows", len(assignments),
		"duration", elapsed,
	)
	return nil
}

func (sm *ScreenManager) finish(gen uint64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if gen == sm.generation && sm.state == StateReflowing {
		sm.state = StateIdle
		if sm.cancel != nil {
			sm.cancel()
			sm.cancel = nil
		}
	}
}

// SetDesktop switches the screen to desktop. After a switch between two
// known desktops the screen waits out the space switch delay before
// reflowing with a space change.
func (sm *ScreenManager) SetDesktop(desktop int) {
	delay := sm.host.options().SpaceSwitchDelay

	sm.mu.Lock()
	if sm.closed || (sm.hasDesktop && sm.desktop == desktop) {
		sm.mu.Unlock()
		return
	}
	switched := sm.hasDesktop
	sm.desktop = desktop
	sm.hasDesktop = true

	if !switched || delay <= 0 {
		sm.mu.Unlock()
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeSpace})
		return
	}

	// Work computed for the previous desktop must not land mid-switch.
	sm.stopLocked()
	sm.generation++
	sm.state = StateIdle
	sm.animating = true
	if sm.animTimer != nil {
		sm.animTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		sm.mu.Lock()
		if sm.animTimer != t {
			sm.mu.Unlock()
			return
		}
		sm.animating = false
		sm.animTimer = nil
		sm.mu.Unlock()
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeSpace})
	})
	sm.animTimer = t
	sm.mu.Unlock()
}

// Desktop returns the screen's desktop and whether it is known.
func (sm *ScreenManager) Desktop() (int, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.desktop, sm.hasDesktop
}

// SetFullscreen marks the screen as covered by a fullscreen window.
// Leaving fullscreen reflows.
func (sm *ScreenManager) SetFullscreen(fullscreen bool) {
	sm.mu.Lock()
	was := sm.fullscreen
	sm.fullscreen = fullscreen
	sm.mu.Unlock()
	if was && !fullscreen {
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	}
}

// activeSlotLocked returns the active slot of the current desktop,
// creating the desktop's layouts and the slot's layout on first use.
func (sm *ScreenManager) activeSlotLocked() *slot {
	if !sm.hasDesktop {
		return nil
	}
	d := sm.desktopLocked(sm.desktop)
	s := d.current()
	if s != nil && s.layout == nil {
		s.layout = sm.host.newLayout(sm.screen.ID, sm.desktop, s.key)
	}
	return s
}

func (sm *ScreenManager) desktopLocked(desktop int) *desktopLayouts {
	if d, ok := sm.desktops[desktop]; ok {
		return d
	}
	keys := sm.host.options().Layouts
	d := &desktopLayouts{}
	for _, key := range keys {
		d.slots = append(d.slots, &slot{key: key})
	}
	if len(d.slots) == 0 {
		d.slots = append(d.slots, &slot{key: layout.KeyFloating})
	}
	if saved := sm.host.restoreActive(sm.screen.ID, desktop); saved != "" {
		for i, s := range d.slots {
			if s.key == saved {
				d.active = i
				break
			}
		}
	}
	sm.desktops[desktop] = d
	return d
}

// CycleLayout moves the current desktop's active layout by step and
// returns the new key.
func (sm *ScreenManager) CycleLayout(step int) (string, error) {
	sm.mu.Lock()
	if !sm.hasDesktop {
		sm.mu.Unlock()
		return "", ErrNoDesktop
	}
	d := sm.desktopLocked(sm.desktop)
	n := len(d.slots)
	d.active = ((d.active+step)%n + n) % n
	key, desktop, screenID := d.slots[d.active].key, sm.desktop, sm.screen.ID
	sm.activeSlotLocked()
	sm.mu.Unlock()

	sm.host.persistActive(screenID, desktop, key)
	sm.logger.Info("layout changed", "layout", key, "desktop", desktop)
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	return key, nil
}

// SelectLayout activates a configured layout on the current desktop.
func (sm *ScreenManager) SelectLayout(key string) error {
	sm.mu.Lock()
	if !sm.hasDesktop {
		sm.mu.Unlock()
		return ErrNoDesktop
	}
	d := sm.desktopLocked(sm.desktop)
	idx := -1
	for i, s := range d.slots {
		if s.key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		sm.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayoutNotConfigured, key)
	}
	d.active = idx
	desktop, screenID := sm.desktop, sm.screen.ID
	sm.activeSlotLocked()
	sm.mu.Unlock()

	sm.host.persistActive(screenID, desktop, key)
	sm.logger.Info("layout selected", "layout", key, "desktop", desktop)
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	return nil
}

// WithActiveLayout runs fn on the active layout under its slot lock and
// persists the layout afterwards. It does not reflow.
func (sm *ScreenManager) WithActiveLayout(fn func(l layout.Layout)) error {
	sm.mu.Lock()
	s := sm.activeSlotLocked()
	desktop, screenID := sm.desktop, sm.screen.ID
	sm.mu.Unlock()
	if s == nil {
		return ErrNoDesktop
	}

	s.mu.Lock()
	fn(s.layout)
	l := s.layout
	s.mu.Unlock()

	sm.host.persist(screenID, desktop, l)
	return nil
}

// viewActiveLayout runs fn on the active layout under its slot lock
// without persisting. fn must not mutate the layout.
func (sm *ScreenManager) viewActiveLayout(fn func(l layout.Layout)) error {
	sm.mu.Lock()
	s := sm.activeSlotLocked()
	sm.mu.Unlock()
	if s == nil {
		return ErrNoDesktop
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.layout)
	return nil
}

// resetLayouts rebuilds every desktop's cycle for a new configured key
// list, keeping existing instances whose key survives.
func (sm *ScreenManager) resetLayouts(keys []string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for desktop, d := range sm.desktops {
		existing := make(map[string]*slot, len(d.slots))
		for _, s := range d.slots {
			existing[s.key] = s
		}
		activeKey := ""
		if s := d.current(); s != nil {
			activeKey = s.key
		}

		next := &desktopLayouts{}
		for _, key := range keys {
			s, ok := existing[key]
			if !ok {
				s = &slot{key: key}
			}
			if key == activeKey {
				next.active = len(next.slots)
			}
			next.slots = append(next.slots, s)
		}
		if len(next.slots) == 0 {
			next.slots = append(next.slots, &slot{key: layout.KeyFloating})
		}
		sm.desktops[desktop] = next
	}
}

// persistAll saves every instantiated layout.
func (sm *ScreenManager) persistAll() {
	sm.mu.Lock()
	screenID := sm.screen.ID
	type saved struct {
		desktop int
		slot    *slot
	}
	var slots []saved
	for desktop, d := range sm.desktops {
		for _, s := range d.slots {
			if s.layout != nil {
				slots = append(slots, saved{desktop, s})
			}
		}
	}
	sm.mu.Unlock()

	for _, entry := range slots {
		entry.slot.mu.Lock()
		sm.host.persist(screenID, entry.desktop, entry.slot.layout)
		entry.slot.mu.Unlock()
	}
}

// Close stops all timers and cancels in-flight work.
func (sm *ScreenManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closed = true
	sm.stopLocked()
	if sm.animTimer != nil {
		sm.animTimer.Stop()
		sm.animTimer = nil
	}
	sm.state = StateIdle
}
