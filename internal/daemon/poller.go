package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/platform"
	"github.com/1broseidon/tessel/internal/tiling"
)

// Provider is the part of the window system the poller reads.
type Provider interface {
	Displays() ([]platform.Display, error)
	CurrentDesktop() (int, error)
	ActiveWindow() (platform.WindowID, error)
	Windows() ([]platform.Window, error)
}

// EventSink receives the changes found between two snapshots.
// *tiling.Manager implements it.
type EventSink interface {
	SyncScreens(screens []layout.Screen)
	SetDesktop(desktop int)
	WindowAdded(info tiling.WindowInfo)
	WindowRemoved(id layout.WindowID)
	WindowFocused(id layout.WindowID)
	WindowUpdated(info tiling.WindowInfo)
	SetFullscreen(screenID string, fullscreen bool)
	ScreenFor(frame layout.Rect) string
}

var _ EventSink = (*tiling.Manager)(nil)

// PollerConfig holds configuration for the poller.
type PollerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Poller periodically snapshots the window system and turns the
// differences into window events.
type Poller struct {
	interval atomic.Int64
	provider Provider
	sink     EventSink
	logger   *slog.Logger

	screens    []layout.Screen
	desktop    int
	hasDesktop bool
	focused    layout.WindowID
	windows    map[layout.WindowID]platform.Window
	fullscreen map[string]bool
}

// NewPoller creates a poller reading provider and feeding sink.
func NewPoller(cfg PollerConfig, provider Provider, sink EventSink) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		provider:   provider,
		sink:       sink,
		logger:     logger,
		windows:    make(map[layout.WindowID]platform.Window),
		fullscreen: make(map[string]bool),
	}
	p.interval.Store(int64(interval))
	return p
}

// SetInterval changes the interval used after the next tick. It is safe
// to call while Run is active.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval.Store(int64(d))
	}
}

func (p *Poller) currentInterval() time.Duration {
	return time.Duration(p.interval.Load())
}

// Run polls until ctx is canceled. The first pass runs immediately.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.currentInterval())
	if err := p.PollNow(); err != nil {
		p.logger.Warn("poll failed", "error", err)
	}

	timer := time.NewTimer(p.currentInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-timer.C:
			if err := p.PollNow(); err != nil {
				p.logger.Warn("poll failed", "error", err)
			}
			timer.Reset(p.currentInterval())
		}
	}
}

// PollNow performs a single pass. Not safe for concurrent use with Run.
func (p *Poller) PollNow() (err error) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poller panic recovered", "error", r)
			err = fmt.Errorf("poll panicked: %v", r)
		}
	}()

	displays, err := p.provider.Displays()
	if err != nil {
		return fmt.Errorf("list displays: %w", err)
	}
	p.syncScreens(displays)

	desktop, err := p.provider.CurrentDesktop()
	if err != nil {
		return fmt.Errorf("read current desktop: %w", err)
	}
	if !p.hasDesktop || desktop != p.desktop {
		p.desktop, p.hasDesktop = desktop, true
		p.sink.SetDesktop(desktop)
	}

	windows, err := p.provider.Windows()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	p.syncWindows(windows)
	p.syncFullscreen(windows)

	active, err := p.provider.ActiveWindow()
	if err != nil {
		p.logger.Debug("read active window failed", "error", err)
		return nil
	}
	id := layout.WindowID(active)
	if _, known := p.windows[id]; known && id != p.focused {
		p.focused = id
		p.sink.WindowFocused(id)
	}
	return nil
}

func (p *Poller) syncScreens(displays []platform.Display) {
	screens := make([]layout.Screen, 0, len(displays))
	for _, d := range displays {
		screens = append(screens, layout.Screen{
			ID:    screenID(d),
			Frame: tiling.RectFromPlatform(d.Usable),
			X:     d.Bounds.X,
		})
	}
	if slices.Equal(screens, p.screens) {
		return
	}
	p.screens = screens
	p.logger.Debug("displays changed", "count", len(screens))
	p.sink.SyncScreens(slices.Clone(screens))
}

func screenID(d platform.Display) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("display-%d", d.ID)
}

func (p *Poller) syncWindows(windows []platform.Window) {
	seen := make(map[layout.WindowID]bool, len(windows))
	for _, w := range windows {
		seen[layout.WindowID(w.ID)] = true
	}
	for id := range p.windows {
		if !seen[id] {
			delete(p.windows, id)
			if id == p.focused {
				p.focused = 0
			}
			p.sink.WindowRemoved(id)
		}
	}

	// Mapping order decides insertion order.
	for _, w := range windows {
		id := layout.WindowID(w.ID)
		prev, known := p.windows[id]
		p.windows[id] = w
		switch {
		case !known:
			p.sink.WindowAdded(windowInfo(w))
		case prev.AppID != w.AppID || prev.Title != w.Title ||
			prev.Bounds != w.Bounds || prev.Desktop != w.Desktop:
			p.sink.WindowUpdated(windowInfo(w))
		}
	}
}

// syncFullscreen flags screens showing a fullscreen window on the current
// desktop.
func (p *Poller) syncFullscreen(windows []platform.Window) {
	covered := make(map[string]bool)
	for _, w := range windows {
		if !w.Fullscreen {
			continue
		}
		if w.Desktop != p.desktop && w.Desktop != platform.AllDesktops {
			continue
		}
		if id := p.sink.ScreenFor(tiling.RectFromPlatform(w.Bounds)); id != "" {
			covered[id] = true
		}
	}
	for _, s := range p.screens {
		if covered[s.ID] != p.fullscreen[s.ID] {
			p.fullscreen[s.ID] = covered[s.ID]
			p.sink.SetFullscreen(s.ID, covered[s.ID])
		}
	}
}

func windowInfo(w platform.Window) tiling.WindowInfo {
	return tiling.WindowInfo{
		ID:        layout.WindowID(w.ID),
		AppID:     w.AppID,
		Title:     w.Title,
		Frame:     tiling.RectFromPlatform(w.Bounds),
		Desktop:   w.Desktop,
		Transient: w.Transient,
	}
}
