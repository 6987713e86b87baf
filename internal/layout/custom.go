package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

// CustomPrefix starts the key of every script-defined layout.
const CustomPrefix = "custom:"

const defaultScriptTimeout = 100 * time.Millisecond

// Custom delegates frame computation to a user script. The script defines
// a global layout() function returning an object with:
//
//	name                 display name
//	initialState         optional state passed to every call
//	getFrameAssignments  (windows, screenFrame, state) -> {id: {x, y, width, height}}
//	updateWithChange     optional (change, state) -> state
//	commands             optional {command1..command4: {description, updateState(state, focusedID) -> state}}
//
// Window ids cross into the script as decimal strings.
type Custom struct {
	key      string
	name     string
	vm       *goja.Runtime
	def      *goja.Object
	state    json.RawMessage
	initial  json.RawMessage
	commands map[int]string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCustom compiles a layout script registered under name.
func NewCustom(name, source string, timeout time.Duration, logger *slog.Logger) (*Custom, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	l := &Custom{
		key:      CustomPrefix + name,
		name:     name,
		vm:       goja.New(),
		commands: make(map[int]string),
		timeout:  timeout,
		logger:   logger.With("layout", CustomPrefix+name),
	}
	l.sandbox()

	var def goja.Value
	err := l.guard(func() error {
		if _, err := l.vm.RunString(source); err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(l.vm.Get("layout"))
		if !ok {
			return errors.New("script does not define layout()")
		}
		v, err := fn(goja.Undefined())
		def = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compile layout %s: %w", name, err)
	}
	if def == nil || goja.IsUndefined(def) || goja.IsNull(def) {
		return nil, fmt.Errorf("compile layout %s: layout() returned nothing", name)
	}
	l.def = def.ToObject(l.vm)

	if _, ok := goja.AssertFunction(l.def.Get("getFrameAssignments")); !ok {
		return nil, fmt.Errorf("compile layout %s: getFrameAssignments is not a function", name)
	}
	if v := l.def.Get("name"); v != nil && !goja.IsUndefined(v) {
		l.name = v.String()
	}
	if v := l.def.Get("initialState"); v != nil && !goja.IsUndefined(v) {
		raw, err := json.Marshal(v.Export())
		if err != nil {
			return nil, fmt.Errorf("compile layout %s: initial state: %w", name, err)
		}
		l.initial = raw
	}
	l.state = l.initial

	if cmds := l.def.Get("commands"); cmds != nil && !goja.IsUndefined(cmds) && !goja.IsNull(cmds) {
		obj := cmds.ToObject(l.vm)
		for n := 1; n <= 4; n++ {
			c := obj.Get("command" + strconv.Itoa(n))
			if c == nil || goja.IsUndefined(c) || goja.IsNull(c) {
				continue
			}
			desc := c.ToObject(l.vm).Get("description")
			if desc == nil || goja.IsUndefined(desc) {
				l.commands[n] = "Command " + strconv.Itoa(n)
				continue
			}
			l.commands[n] = desc.String()
		}
	}
	return l, nil
}

// sandbox strips the module loader and host access from the global scope.
func (l *Custom) sandbox() {
	for _, name := range []string{"require", "process", "module", "exports"} {
		l.vm.Set(name, goja.Undefined())
	}
	console := l.vm.NewObject()
	console.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]any, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			args = append(args, a.String())
		}
		l.logger.Debug("script", "args", args)
		return goja.Undefined()
	})
	l.vm.Set("console", console)
}

// guard runs fn with the script time budget. Runaway scripts are
// interrupted and reported as errors; panics from the VM are recovered.
func (l *Custom) guard(fn func() error) (err error) {
	timer := time.AfterFunc(l.timeout, func() {
		l.vm.Interrupt("script timeout exceeded")
	})
	defer func() {
		timer.Stop()
		l.vm.ClearInterrupt()
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v", r)
		}
	}()
	return fn()
}

func (l *Custom) Key() string  { return l.key }
func (l *Custom) Name() string { return l.name }

type scriptRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r scriptRect) rect() Rect {
	return Rect{
		X:      int(math.Round(r.X)),
		Y:      int(math.Round(r.Y)),
		Width:  int(math.Round(r.Width)),
		Height: int(math.Round(r.Height)),
	}
}

func (l *Custom) Assignments(ws WindowSet, screen Screen, _ Settings) []FrameAssignment {
	windows := ws.Active()
	if len(windows) == 0 {
		return nil
	}

	input := make([]map[string]any, 0, len(windows))
	for _, w := range windows {
		input = append(input, map[string]any{
			"id":        w.ID.String(),
			"frame":     rectMap(w.Frame),
			"isFocused": w.Focused,
		})
	}

	var frames map[string]scriptRect
	err := l.guard(func() error {
		fn, _ := goja.AssertFunction(l.def.Get("getFrameAssignments"))
		v, err := fn(l.def, l.vm.ToValue(input), l.vm.ToValue(rectMap(screen.Frame)), l.stateValue())
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v.Export())
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &frames)
	})
	if err != nil {
		l.logger.Error("getFrameAssignments failed", "error", err)
		return nil
	}

	out := make([]FrameAssignment, 0, len(windows))
	for _, w := range windows {
		sr, ok := frames[w.ID.String()]
		if !ok {
			l.logger.Warn("script left window unassigned", "window", w.ID)
			continue
		}
		out = append(out, FrameAssignment{
			Frame:       sr.rect(),
			Window:      w,
			ScreenFrame: screen.Frame,
			Rules:       ResizeRules{Unconstrained: Horizontal, ScaleFactor: 1},
		})
	}
	return out
}

func (l *Custom) UpdateWithChange(change Change) {
	fn, ok := goja.AssertFunction(l.def.Get("updateWithChange"))
	if !ok {
		return
	}
	arg := map[string]any{
		"change":        change.Kind.String(),
		"windowID":      change.Window.String(),
		"otherWindowID": change.Other.String(),
	}
	l.callState(func() (goja.Value, error) {
		return fn(l.def, l.vm.ToValue(arg), l.stateValue())
	}, "updateWithChange")
}

// Reconcile is a no-op; scripts only see change hints.
func (l *Custom) Reconcile(WindowSet) {}

func (l *Custom) Commands() map[int]string {
	out := make(map[int]string, len(l.commands))
	for n, d := range l.commands {
		out[n] = d
	}
	return out
}

func (l *Custom) Command(n int, focused WindowID) {
	if _, ok := l.commands[n]; !ok {
		return
	}
	cmd := l.def.Get("commands").ToObject(l.vm).Get("command" + strconv.Itoa(n)).ToObject(l.vm)
	fn, ok := goja.AssertFunction(cmd.Get("updateState"))
	if !ok {
		return
	}
	l.callState(func() (goja.Value, error) {
		return fn(cmd, l.stateValue(), l.vm.ToValue(focused.String()))
	}, "command"+strconv.Itoa(n))
}

// callState runs a state-producing script function and stores its result.
func (l *Custom) callState(call func() (goja.Value, error), what string) {
	var next json.RawMessage
	err := l.guard(func() error {
		v, err := call()
		if err != nil {
			return err
		}
		if v == nil || goja.IsUndefined(v) {
			return nil
		}
		raw, err := json.Marshal(v.Export())
		next = raw
		return err
	})
	if err != nil {
		l.logger.Error("script call failed", "call", what, "error", err)
		return
	}
	if next != nil {
		l.state = next
	}
}

func (l *Custom) stateValue() goja.Value {
	if len(l.state) == 0 {
		return goja.Undefined()
	}
	var v any
	if err := json.Unmarshal(l.state, &v); err != nil {
		return goja.Undefined()
	}
	return l.vm.ToValue(v)
}

func (l *Custom) MarshalState() ([]byte, error) {
	if len(l.state) == 0 {
		return []byte("null"), nil
	}
	return l.state, nil
}

func (l *Custom) UnmarshalState(data []byte) error {
	if !json.Valid(data) {
		return errors.New("custom layout state is not valid json")
	}
	if string(data) == "null" {
		l.state = l.initial
		return nil
	}
	l.state = append(json.RawMessage(nil), data...)
	return nil
}

func rectMap(r Rect) map[string]any {
	return map[string]any{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}
}
