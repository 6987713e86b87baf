package hotkeys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/1broseidon/tessel/internal/config"
	"github.com/1broseidon/tessel/internal/platform"
	"github.com/1broseidon/tessel/internal/tiling"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

const commandTimeout = 5 * time.Second

// Executor runs tiling commands.
type Executor interface {
	Execute(ctx context.Context, cmd tiling.Command, arg string) error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Binding ties a key sequence to a command.
type Binding struct {
	Keys    string
	Command tiling.Command
	Arg     string
}

func (b Binding) String() string {
	if b.Arg != "" {
		return fmt.Sprintf("%s -> %s %s", b.Keys, b.Command, b.Arg)
	}
	return fmt.Sprintf("%s -> %s", b.Keys, b.Command)
}

// ParseBindings turns the hotkeys configuration (binding name to key
// sequence) into bindings ordered by key sequence.
func ParseBindings(hotkeys map[string]string) ([]Binding, error) {
	out := make([]Binding, 0, len(hotkeys))
	var errs []error
	for name, keys := range hotkeys {
		cmd, arg, err := config.Binding(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("hotkey %q: %w", name, err))
			continue
		}
		out = append(out, Binding{Keys: keys, Command: cmd, Arg: arg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keys < out[j].Keys })
	return out, errors.Join(errs...)
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	exec   Executor
	logger *slog.Logger

	mu    sync.Mutex
	bound []Binding
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler.
func NewHandler(backend platform.Backend, exec Executor, logger *slog.Logger) *Handler {
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:     xu,
		root:   root,
		exec:   exec,
		logger: logger,
	}
}

// Bind replaces every registered hotkey with hotkeys. Bindings that fail to
// parse or grab are reported; the rest stay active.
func (h *Handler) Bind(hotkeys map[string]string) error {
	if h.xu == nil {
		return errors.New("hotkeys need an X11 backend")
	}
	bindings, parseErr := ParseBindings(hotkeys)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.bound) > 0 {
		keybind.Detach(h.xu, h.root)
		h.bound = nil
	}

	errs := []error{parseErr}
	for _, b := range bindings {
		if err := h.register(b); err != nil {
			errs = append(errs, fmt.Errorf("bind %s: %w", b, err))
			continue
		}
		h.bound = append(h.bound, b)
		h.logger.Debug("hotkey bound", "keys", b.Keys, "command", b.Command, "arg", b.Arg)
	}
	h.logger.Info("hotkeys registered", "count", len(h.bound))
	return errors.Join(errs...)
}

// Bound returns the active bindings.
func (h *Handler) Bound() []Binding {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Binding(nil), h.bound...)
}

func (h *Handler) register(b Binding) error {
	return h.RegisterFunc(b.Keys, func() {
		h.trigger(b)
	})
}

func (h *Handler) trigger(b Binding) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.exec.Execute(ctx, b.Command, b.Arg); err != nil {
		h.logger.Warn("hotkey command failed", "keys", b.Keys, "command", b.Command, "error", err)
	}
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
