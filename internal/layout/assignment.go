package layout

import (
	"context"
	"fmt"
)

// Settings is the configuration snapshot a reflow is computed with.
type Settings struct {
	MarginsEnabled bool
	MarginSize     int
	MinimumWidth   int
	MinimumHeight  int
	// RatioStep is how far shrink/expand commands move the main pane ratio.
	RatioStep float64
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{RatioStep: 0.05}
}

// ResizeRules describe how a manual resize of an assigned window maps back
// onto the layout's main pane ratio.
type ResizeRules struct {
	IsMain bool
	// Unconstrained is the single dimension a resize is interpreted along.
	Unconstrained Dimension
	// ScaleFactor is the inverse of the window's pane group share of the
	// screen along Unconstrained.
	ScaleFactor float64
}

// FrameAssignment is one window's target rectangle for a reflow.
type FrameAssignment struct {
	Frame       Rect
	Window      Window
	ScreenFrame Rect
	Rules       ResizeRules
	// IgnoreMargins suppresses margin insets, e.g. for a window that
	// covers the whole screen.
	IgnoreMargins bool
}

// FinalFrame applies margin insets and minimum size constraints.
// Half of the margin is taken from each edge so adjacent windows end up a
// full margin apart.
func (a FrameAssignment) FinalFrame(s Settings) Rect {
	ret := a.Frame
	if s.MarginsEnabled && !a.IgnoreMargins && s.MarginSize > 0 {
		pad := s.MarginSize / 2
		ret = ret.Inset(pad, pad, pad, pad)
	}
	if s.MinimumWidth > ret.Width {
		ret.X -= (s.MinimumWidth - ret.Width) / 2
		ret.Width = s.MinimumWidth
	}
	if s.MinimumHeight > ret.Height {
		ret.Y -= (s.MinimumHeight - ret.Height) / 2
		ret.Height = s.MinimumHeight
	}
	return ret
}

// WindowMover is the window provider's geometry surface.
type WindowMover interface {
	SetFrame(id WindowID, frame Rect) error
	Frame(id WindowID) (Rect, error)
}

// Perform applies the assignment. The focused window and main pane windows
// are peeked: applied once to learn the size the window actually accepted,
// grown to that size, pulled back on-screen and applied again.
func (a FrameAssignment) Perform(ctx context.Context, mover WindowMover, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := a.FinalFrame(s)
	id := a.Window.ID

	if !a.Window.Focused && !a.Rules.IsMain {
		return mover.SetFrame(id, frame)
	}

	if err := mover.SetFrame(id, frame); err != nil {
		return fmt.Errorf("peek window %s: %w", id, err)
	}
	actual, err := mover.Frame(id)
	if err != nil {
		// Nothing to correct against; the first pass stands.
		return nil
	}

	corrected := frame
	if actual.Width > corrected.Width {
		corrected.Width = actual.Width
	}
	if actual.Height > corrected.Height {
		corrected.Height = actual.Height
	}
	screen := a.ScreenFrame
	if corrected.MaxX() > screen.MaxX() {
		corrected.X = screen.MaxX() - corrected.Width
	}
	if corrected.X < screen.X {
		corrected.X = screen.X
	}
	if corrected.MaxY() > screen.MaxY() {
		corrected.Y = screen.MaxY() - corrected.Height
	}
	if corrected.Y < screen.Y {
		corrected.Y = screen.Y
	}

	if corrected == actual {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return mover.SetFrame(id, corrected)
}

// ImpliedMainPaneRatio infers the main pane ratio from a manual resize of
// this assignment's window to observed.
func (a FrameAssignment) ImpliedMainPaneRatio(observed Rect) float64 {
	return ImpliedMainPaneRatio(a.Frame, observed, a.Rules)
}

// ImpliedMainPaneRatio returns the main pane ratio implied by a window
// going from old to observed along the rules' unconstrained dimension.
// It returns -1 when nothing can be inferred.
func ImpliedMainPaneRatio(old, observed Rect, rules ResizeRules) float64 {
	oldDim := rules.Unconstrained.of(old)
	if oldDim <= 0 || rules.ScaleFactor <= 0 {
		return -1
	}
	share := float64(rules.Unconstrained.of(observed)) / float64(oldDim) / rules.ScaleFactor
	if rules.IsMain {
		return ClampRatio(share)
	}
	return ClampRatio(1 - share)
}

// paneScale returns the scale factor for a pane group holding share of the
// screen. The unrounded share keeps Split and ImpliedMainPaneRatio exact
// inverses.
func paneScale(share float64) float64 {
	if share <= 0 {
		return 1
	}
	return 1 / share
}
