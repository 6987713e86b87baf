package tiling

import (
	"context"
	"fmt"
	"slices"

	"github.com/1broseidon/tessel/internal/layout"
)

// Command names a user action bound to hotkeys, IPC and MCP.
type Command string

const (
	CmdCycleLayout         Command = "cycle-layout"
	CmdCycleLayoutBackward Command = "cycle-layout-backward"
	CmdSelectLayout        Command = "select-layout"
	CmdShrinkMain          Command = "shrink-main"
	CmdExpandMain          Command = "expand-main"
	CmdIncreaseMain        Command = "increase-main"
	CmdDecreaseMain        Command = "decrease-main"
	CmdFocusCW             Command = "focus-cw"
	CmdFocusCCW            Command = "focus-ccw"
	CmdSwapCW              Command = "swap-cw"
	CmdSwapCCW             Command = "swap-ccw"
	CmdSwapMain            Command = "swap-main"
	CmdToggleFloat         Command = "toggle-float"
	CmdToggleTiling        Command = "toggle-tiling"
	CmdReevaluate          Command = "reevaluate"
	CmdCommand1            Command = "command1"
	CmdCommand2            Command = "command2"
	CmdCommand3            Command = "command3"
	CmdCommand4            Command = "command4"
)

var allCommands = []Command{
	CmdCycleLayout, CmdCycleLayoutBackward, CmdSelectLayout,
	CmdShrinkMain, CmdExpandMain, CmdIncreaseMain, CmdDecreaseMain,
	CmdFocusCW, CmdFocusCCW, CmdSwapCW, CmdSwapCCW, CmdSwapMain,
	CmdToggleFloat, CmdToggleTiling, CmdReevaluate,
	CmdCommand1, CmdCommand2, CmdCommand3, CmdCommand4,
}

// Commands lists every command name.
func Commands() []Command {
	return slices.Clone(allCommands)
}

// ParseCommand validates a command name.
func ParseCommand(name string) (Command, error) {
	cmd := Command(name)
	if !slices.Contains(allCommands, cmd) {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// layoutCommand maps command1..command4 to the layout command number.
func (c Command) layoutCommand() (int, bool) {
	switch c {
	case CmdCommand1:
		return 1, true
	case CmdCommand2:
		return 2, true
	case CmdCommand3:
		return 3, true
	case CmdCommand4:
		return 4, true
	}
	return 0, false
}

// Execute runs a command against the focused window's screen. arg is the
// layout key for select-layout and ignored otherwise.
func (m *Manager) Execute(ctx context.Context, cmd Command, arg string) error {
	err := m.execute(ctx, cmd, arg)
	m.recorder.CommandExecuted(string(cmd), err)
	if err != nil {
		m.logger.Debug("command failed", "command", cmd, "error", err)
	}
	return err
}

func (m *Manager) execute(ctx context.Context, cmd Command, arg string) error {
	switch cmd {
	case CmdToggleTiling:
		return m.toggleTiling(ctx)
	case CmdReevaluate:
		return m.reevaluate(ctx)
	}

	sm, err := m.targetScreen()
	if err != nil {
		return err
	}
	step := m.Options().Settings.RatioStep

	switch cmd {
	case CmdCycleLayout:
		_, err := sm.CycleLayout(1)
		return err
	case CmdCycleLayoutBackward:
		_, err := sm.CycleLayout(-1)
		return err
	case CmdSelectLayout:
		return sm.SelectLayout(arg)
	case CmdShrinkMain:
		return m.mutatePaned(sm, func(p layout.PanedLayout) { p.ShrinkMainPane(step) })
	case CmdExpandMain:
		return m.mutatePaned(sm, func(p layout.PanedLayout) { p.ExpandMainPane(step) })
	case CmdIncreaseMain:
		return m.mutatePaned(sm, func(p layout.PanedLayout) { p.IncreaseMainPaneCount() })
	case CmdDecreaseMain:
		return m.mutatePaned(sm, func(p layout.PanedLayout) { p.DecreaseMainPaneCount() })
	case CmdFocusCW:
		return m.focusStep(sm, 1)
	case CmdFocusCCW:
		return m.focusStep(sm, -1)
	case CmdSwapCW:
		return m.swapStep(sm, 1)
	case CmdSwapCCW:
		return m.swapStep(sm, -1)
	case CmdSwapMain:
		return m.swapMain(sm)
	case CmdToggleFloat:
		return m.toggleFloat(sm)
	}

	if n, ok := cmd.layoutCommand(); ok {
		focused, _ := m.focusedWindow()
		err := sm.WithActiveLayout(func(l layout.Layout) {
			if c, ok := l.(layout.CommandLayout); ok {
				c.Command(n, focused)
			}
		})
		if err != nil {
			return err
		}
		sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

// CycleLayout cycles the focused screen's layout and returns the new key.
func (m *Manager) CycleLayout(step int) (string, error) {
	sm, err := m.targetScreen()
	if err != nil {
		return "", err
	}
	return sm.CycleLayout(step)
}

// SelectLayout activates key on the focused screen.
func (m *Manager) SelectLayout(key string) error {
	sm, err := m.targetScreen()
	if err != nil {
		return err
	}
	return sm.SelectLayout(key)
}

// targetScreen is the focused window's screen, else the leftmost screen.
func (m *Manager) targetScreen() (*ScreenManager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasFocus {
		if w, ok := m.windows[m.focused]; ok {
			if sm, ok := m.screenByIDLocked(w.screenID); ok {
				return sm, nil
			}
		}
	}
	if len(m.screens) == 0 {
		return nil, ErrUnknownScreen
	}
	return m.screens[0], nil
}

func (m *Manager) focusedWindow() (layout.WindowID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasFocus {
		return 0, false
	}
	_, ok := m.windows[m.focused]
	return m.focused, ok
}

func (m *Manager) mutatePaned(sm *ScreenManager, fn func(layout.PanedLayout)) error {
	err := sm.WithActiveLayout(func(l layout.Layout) {
		if p, ok := l.(layout.PanedLayout); ok {
			fn(p)
		}
	})
	if err != nil {
		return err
	}
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeUnknown})
	return nil
}

// tiledOrder returns the screen's tiled windows in the active layout's
// traversal order.
func (m *Manager) tiledOrder(sm *ScreenManager) ([]layout.WindowID, error) {
	desktop, ok := sm.Desktop()
	if !ok {
		return nil, ErrNoDesktop
	}
	ws := m.snapshot(sm.ID(), desktop)
	var order []layout.WindowID
	err := sm.viewActiveLayout(func(l layout.Layout) {
		if o, ok := l.(layout.Orderer); ok {
			order = o.Order(ws)
			return
		}
		for _, w := range ws.Active() {
			order = append(order, w.ID)
		}
	})
	return order, err
}

// neighbor returns the window step places away from the focused one,
// wrapping around.
func neighbor(order []layout.WindowID, focused layout.WindowID, step int) (layout.WindowID, bool) {
	idx := slices.Index(order, focused)
	if idx < 0 || len(order) < 2 {
		return 0, false
	}
	n := len(order)
	return order[((idx+step)%n+n)%n], true
}

func (m *Manager) focusStep(sm *ScreenManager, step int) error {
	order, err := m.tiledOrder(sm)
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}
	focused, ok := m.focusedWindow()
	target := order[0]
	if ok {
		if next, found := neighbor(order, focused, step); found {
			target = next
		}
	}
	if m.focuser == nil {
		return nil
	}
	if err := m.focuser.Focus(target); err != nil {
		return fmt.Errorf("focus window %s: %w", target, err)
	}
	m.WindowFocused(target)
	return nil
}

func (m *Manager) swapStep(sm *ScreenManager, step int) error {
	focused, ok := m.focusedWindow()
	if !ok {
		return ErrNoFocusedWindow
	}
	order, err := m.tiledOrder(sm)
	if err != nil {
		return err
	}
	other, found := neighbor(order, focused, step)
	if !found {
		return nil
	}
	return m.swap(sm, focused, other)
}

// swapMain moves the focused window into the first position; the first
// window trades places with the second.
func (m *Manager) swapMain(sm *ScreenManager) error {
	focused, ok := m.focusedWindow()
	if !ok {
		return ErrNoFocusedWindow
	}
	order, err := m.tiledOrder(sm)
	if err != nil {
		return err
	}
	if len(order) < 2 || !slices.Contains(order, focused) {
		return nil
	}
	other := order[0]
	if other == focused {
		other = order[1]
	}
	return m.swap(sm, focused, other)
}

// swap exchanges two windows. Layouts that own placement swap when the
// change reaches them; everything else swaps in the global order.
func (m *Manager) swap(sm *ScreenManager, a, b layout.WindowID) error {
	owned := false
	err := sm.viewActiveLayout(func(l layout.Layout) {
		_, owned = l.(layout.Swapper)
	})
	if err != nil {
		return err
	}
	if !owned {
		m.mu.Lock()
		i, j := slices.Index(m.order, a), slices.Index(m.order, b)
		if i >= 0 && j >= 0 {
			m.order[i], m.order[j] = m.order[j], m.order[i]
		}
		m.mu.Unlock()
	}
	sm.SetNeedsReflow(layout.Change{Kind: layout.ChangeSwap, Window: a, Other: b})
	return nil
}

func (m *Manager) toggleFloat(sm *ScreenManager) error {
	m.mu.Lock()
	w, ok := m.windows[m.focused]
	if !m.hasFocus || !ok {
		m.mu.Unlock()
		return ErrNoFocusedWindow
	}
	w.floating = !w.floating
	w.userToggled = true
	id, floating := w.info.ID, w.floating
	m.mu.Unlock()

	m.logger.Info("window float toggled", "window", id, "floating", floating)
	kind := layout.ChangeAdd
	if floating {
		kind = layout.ChangeRemove
	}
	sm.SetNeedsReflow(layout.Change{Kind: kind, Window: id})
	return nil
}

func (m *Manager) toggleTiling(ctx context.Context) error {
	opts := m.Options()
	opts.TilingEnabled = !opts.TilingEnabled
	m.opts.Store(&opts)
	m.logger.Info("tiling toggled", "enabled", opts.TilingEnabled)
	if !opts.TilingEnabled {
		return nil
	}
	return m.ReflowAll(ctx)
}

// reevaluate re-applies the floating rules to every window that the user
// has not toggled and reflows everything.
func (m *Manager) reevaluate(ctx context.Context) error {
	m.mu.Lock()
	if m.floater != nil {
		for _, w := range m.windows {
			if !w.userToggled {
				w.floating = w.info.Transient || m.floater.Floats(w.info.AppID, w.info.Title)
			}
		}
	}
	m.mu.Unlock()
	return m.ReflowAll(ctx)
}

// ScreenStatus describes one screen for status reporting.
type ScreenStatus struct {
	ID            string      `json:"id"`
	Frame         layout.Rect `json:"frame"`
	Desktop       int         `json:"desktop"`
	Layout        string      `json:"layout"`
	LayoutName    string      `json:"layout_name"`
	State         string      `json:"state"`
	Windows       int         `json:"windows"`
	Floating      int         `json:"floating"`
	MainPaneRatio float64     `json:"main_pane_ratio,omitempty"`
	MainPaneCount int         `json:"main_pane_count,omitempty"`
}

// Status is a point-in-time view of the daemon.
type Status struct {
	TilingEnabled bool           `json:"tiling_enabled"`
	Desktop       int            `json:"desktop"`
	Focused       uint32         `json:"focused,omitempty"`
	Windows       int            `json:"windows"`
	Layouts       []string       `json:"layouts"`
	Screens       []ScreenStatus `json:"screens"`
}

// Status reports the current state of every screen.
func (m *Manager) Status() Status {
	opts := m.Options()

	m.mu.Lock()
	st := Status{
		TilingEnabled: opts.TilingEnabled,
		Desktop:       m.desktop,
		Windows:       len(m.windows),
		Layouts:       slices.Clone(opts.Layouts),
	}
	if m.hasFocus {
		st.Focused = uint32(m.focused)
	}
	screens := slices.Clone(m.screens)
	m.mu.Unlock()

	for _, sm := range screens {
		screen := sm.Screen()
		ss := ScreenStatus{
			ID:      screen.ID,
			Frame:   screen.Frame,
			Desktop: -1,
			State:   sm.State().String(),
		}
		if desktop, ok := sm.Desktop(); ok {
			ss.Desktop = desktop
			ws := m.snapshot(screen.ID, desktop)
			active := len(ws.Active())
			ss.Windows = active
			ss.Floating = len(ws.Windows) - active
		}
		_ = sm.viewActiveLayout(func(l layout.Layout) {
			ss.Layout, ss.LayoutName = l.Key(), l.Name()
			if p, ok := l.(layout.PanedLayout); ok {
				ss.MainPaneRatio = p.MainPaneRatio()
				ss.MainPaneCount = p.MainPaneCount()
			}
		})
		st.Screens = append(st.Screens, ss)
	}
	return st
}
