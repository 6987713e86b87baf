package tiling

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/platform"
)

// FrameApplier pushes computed frames to the window system.
type FrameApplier interface {
	// Apply performs the assignments in order and returns the frame each
	// window ended up with. It stops at the first frame after ctx is done.
	Apply(ctx context.Context, assignments []layout.FrameAssignment, s layout.Settings) (map[layout.WindowID]layout.Rect, error)
}

// Applier is the single serialized sink for window mutations.
type Applier struct {
	mu     sync.Mutex
	mover  layout.WindowMover
	logger *slog.Logger
}

var _ FrameApplier = (*Applier)(nil)

// NewApplier creates an applier that moves windows through mover.
func NewApplier(mover layout.WindowMover, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{mover: mover, logger: logger}
}

// Apply performs every assignment. A window that can't be moved is logged
// and skipped; only cancellation aborts the batch.
func (a *Applier) Apply(ctx context.Context, assignments []layout.FrameAssignment, s layout.Settings) (map[layout.WindowID]layout.Rect, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	actual := make(map[layout.WindowID]layout.Rect, len(assignments))
	for _, as := range assignments {
		if err := ctx.Err(); err != nil {
			return actual, err
		}
		if err := as.Perform(ctx, a.mover, s); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return actual, err
			}
			a.logger.Warn("apply frame failed", "window", as.Window.ID, "frame", as.Frame, "error", err)
			continue
		}
		frame, err := a.mover.Frame(as.Window.ID)
		if err != nil {
			frame = as.FinalFrame(s)
		}
		actual[as.Window.ID] = frame
	}
	return actual, nil
}

// BackendDriver adapts a platform backend to the layout and tiling
// window interfaces.
type BackendDriver struct {
	backend platform.Backend
}

// NewBackendDriver wraps backend.
func NewBackendDriver(backend platform.Backend) *BackendDriver {
	return &BackendDriver{backend: backend}
}

func (d *BackendDriver) SetFrame(id layout.WindowID, frame layout.Rect) error {
	return d.backend.MoveResize(platform.WindowID(id), RectToPlatform(frame))
}

func (d *BackendDriver) Frame(id layout.WindowID) (layout.Rect, error) {
	r, err := d.backend.Geometry(platform.WindowID(id))
	if err != nil {
		return layout.Rect{}, err
	}
	return RectFromPlatform(r), nil
}

func (d *BackendDriver) Focus(id layout.WindowID) error {
	return d.backend.Focus(platform.WindowID(id))
}

// RectFromPlatform converts platform geometry to layout geometry.
func RectFromPlatform(r platform.Rect) layout.Rect {
	return layout.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// RectToPlatform converts layout geometry to platform geometry.
func RectToPlatform(r layout.Rect) platform.Rect {
	return platform.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
