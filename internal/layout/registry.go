package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Built-in layout keys.
const (
	KeyTall              = "tall"
	KeyTallRight         = "tall-right"
	KeyWide              = "wide"
	KeyWideBottom        = "wide-bottom"
	KeyColumn            = "column"
	KeyRow               = "row"
	KeyThreeColumnLeft   = "3column-left"
	KeyThreeColumnMiddle = "3column-middle"
	KeyThreeColumnRight  = "3column-right"
	KeyFourColumnLeft    = "4column-left"
	KeyFourColumnMiddle  = "4column-middle"
	KeyFourColumnRight   = "4column-right"
	KeyTwoPane           = "two-pane"
	KeyFullscreen        = "fullscreen"
	KeyFloating          = "floating"
	KeyStage             = "stage"
	KeyBSP               = "bsp"
)

// ErrUnknownLayout is returned for keys that name no built-in layout and
// no registered script.
var ErrUnknownLayout = errors.New("unknown layout")

type builtin struct {
	key  string
	make func(*slog.Logger) Layout
}

var builtins = []builtin{
	{KeyTall, func(*slog.Logger) Layout { return NewTall() }},
	{KeyTallRight, func(*slog.Logger) Layout { return NewTallRight() }},
	{KeyWide, func(*slog.Logger) Layout { return NewWide() }},
	{KeyWideBottom, func(*slog.Logger) Layout { return NewWideBottom() }},
	{KeyColumn, func(*slog.Logger) Layout { return NewColumn() }},
	{KeyRow, func(*slog.Logger) Layout { return NewRow() }},
	{KeyThreeColumnLeft, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyThreeColumnLeft, "3Column Left", 2, MainLeft)
	}},
	{KeyThreeColumnMiddle, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyThreeColumnMiddle, "3Column Middle", 2, MainMiddle)
	}},
	{KeyThreeColumnRight, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyThreeColumnRight, "3Column Right", 2, MainRight)
	}},
	{KeyFourColumnLeft, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyFourColumnLeft, "4Column Left", 3, MainLeft)
	}},
	{KeyFourColumnMiddle, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyFourColumnMiddle, "4Column Middle", 3, MainMiddle)
	}},
	{KeyFourColumnRight, func(*slog.Logger) Layout {
		return NewMultiColumn(KeyFourColumnRight, "4Column Right", 3, MainRight)
	}},
	{KeyTwoPane, func(*slog.Logger) Layout { return NewTwoPane() }},
	{KeyFullscreen, func(*slog.Logger) Layout { return NewFullscreen() }},
	{KeyFloating, func(*slog.Logger) Layout { return NewFloating() }},
	{KeyStage, func(*slog.Logger) Layout { return NewStage() }},
	{KeyBSP, func(l *slog.Logger) Layout { return NewBSP(l) }},
}

// BuiltinKeys lists the built-in layout keys in display order.
func BuiltinKeys() []string {
	keys := make([]string, 0, len(builtins))
	for _, b := range builtins {
		keys = append(keys, b.key)
	}
	return keys
}

// Registry constructs layouts by key. Script layouts are registered by
// name and compiled into a fresh VM for every instance.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry returns a registry holding only the built-in layouts.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{scripts: make(map[string]string), timeout: defaultScriptTimeout, logger: logger}
}

// SetScriptTimeout bounds every script call of layouts created afterwards.
func (r *Registry) SetScriptTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.timeout = d
	}
}

// AddScript registers source under custom:<name> after checking it compiles.
func (r *Registry) AddScript(name, source string) error {
	name = strings.TrimPrefix(name, CustomPrefix)
	if name == "" {
		return errors.New("custom layout name is empty")
	}
	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()
	if _, err := NewCustom(name, source, timeout, r.logger); err != nil {
		return err
	}
	r.mu.Lock()
	r.scripts[name] = source
	r.mu.Unlock()
	return nil
}

// LoadScript registers the script file at path.
func (r *Registry) LoadScript(name, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read layout script %s: %w", path, err)
	}
	return r.AddScript(name, string(src))
}

// Keys lists built-in keys followed by registered script keys.
func (r *Registry) Keys() []string {
	keys := BuiltinKeys()
	r.mu.RLock()
	custom := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		custom = append(custom, CustomPrefix+name)
	}
	r.mu.RUnlock()
	sort.Strings(custom)
	return append(keys, custom...)
}

// Known reports whether key can be constructed.
func (r *Registry) Known(key string) bool {
	for _, b := range builtins {
		if b.key == key {
			return true
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scripts[strings.TrimPrefix(key, CustomPrefix)]
	return strings.HasPrefix(key, CustomPrefix) && ok
}

// New constructs a fresh default instance of the layout named by key.
func (r *Registry) New(key string) (Layout, error) {
	for _, b := range builtins {
		if b.key == key {
			return b.make(r.logger.With("layout", key)), nil
		}
	}
	if name, ok := strings.CutPrefix(key, CustomPrefix); ok {
		r.mu.RLock()
		src, found := r.scripts[name]
		timeout := r.timeout
		r.mu.RUnlock()
		if found {
			return NewCustom(name, src, timeout, r.logger)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, key)
}

// Encoded is the persisted form of a layout instance.
type Encoded struct {
	Key   string          `json:"key"`
	State json.RawMessage `json:"state,omitempty"`
}

// Encode captures a layout's parameters.
func Encode(l Layout) (Encoded, error) {
	e := Encoded{Key: l.Key()}
	c, ok := l.(Codec)
	if !ok {
		return e, nil
	}
	state, err := c.MarshalState()
	if err != nil {
		return Encoded{}, fmt.Errorf("encode layout %s: %w", l.Key(), err)
	}
	e.State = state
	return e, nil
}

// Decode restores an encoded layout. When the saved state is invalid the
// returned layout is a fresh default for the key and the error describes
// what was rejected.
func (r *Registry) Decode(e Encoded) (Layout, error) {
	l, err := r.New(e.Key)
	if err != nil {
		return nil, err
	}
	c, ok := l.(Codec)
	if !ok || len(e.State) == 0 {
		return l, nil
	}
	if err := c.UnmarshalState(e.State); err != nil {
		fresh, _ := r.New(e.Key)
		return fresh, fmt.Errorf("restore layout %s: %w", e.Key, err)
	}
	return l, nil
}
