package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

// Margins represents padding kept free on each screen edge.
type Margins struct {
	Top    int `yaml:"top"`
	Bottom int `yaml:"bottom"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

// Config holds the application configuration.
type Config struct {
	Layouts             []string          `yaml:"layouts"`
	TilingEnabled       bool              `yaml:"tiling_enabled"`
	WindowMargins       bool              `yaml:"window_margins"`
	WindowMarginSize    int               `yaml:"window_margin_size"`
	WindowMinimumWidth  int               `yaml:"window_minimum_width"`
	WindowMinimumHeight int               `yaml:"window_minimum_height"`
	ScreenPadding       Margins           `yaml:"screen_padding"`
	RatioStep           float64           `yaml:"ratio_step"`
	FloatApps           FloatAppList      `yaml:"float_apps"`
	FloatTitles         []string          `yaml:"float_titles"`
	NewWindowsToMain    bool              `yaml:"new_windows_to_main"`
	ReflowDebounceMS    int               `yaml:"reflow_debounce_ms"`
	SpaceSwitchDelayMS  int               `yaml:"space_switch_delay_ms"`
	PollIntervalMS      int               `yaml:"poll_interval_ms"`
	CustomLayouts       map[string]string `yaml:"custom_layouts"`
	ScriptTimeoutMS     int               `yaml:"script_timeout_ms"`
	Hotkeys             map[string]string `yaml:"hotkeys"`
	MetricsAddr         string            `yaml:"metrics_addr,omitempty"`
	LogLevel            string            `yaml:"log_level"`
	Display             string            `yaml:"display,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Layouts:             []string{layout.KeyTall, layout.KeyWide, layout.KeyFullscreen, layout.KeyBSP},
		TilingEnabled:       true,
		WindowMargins:       false,
		WindowMarginSize:    0,
		WindowMinimumWidth:  0,
		WindowMinimumHeight: 0,
		RatioStep:           0.05,
		FloatApps:           FloatAppList{},
		FloatTitles:         []string{},
		ReflowDebounceMS:    50,
		SpaceSwitchDelayMS:  300,
		PollIntervalMS:      250,
		CustomLayouts:       map[string]string{},
		ScriptTimeoutMS:     100,
		Hotkeys:             DefaultHotkeys(),
		LogLevel:            "info",
	}
}

// DefaultHotkeys binds every command to Super+Alt chords.
func DefaultHotkeys() map[string]string {
	return map[string]string{
		string(tiling.CmdCycleLayout):         "Mod4-Mod1-space",
		string(tiling.CmdCycleLayoutBackward): "Mod4-Mod1-Shift-space",
		string(tiling.CmdShrinkMain):          "Mod4-Mod1-h",
		string(tiling.CmdExpandMain):          "Mod4-Mod1-l",
		string(tiling.CmdIncreaseMain):        "Mod4-Mod1-comma",
		string(tiling.CmdDecreaseMain):        "Mod4-Mod1-period",
		string(tiling.CmdFocusCW):             "Mod4-Mod1-j",
		string(tiling.CmdFocusCCW):            "Mod4-Mod1-k",
		string(tiling.CmdSwapCW):              "Mod4-Mod1-Shift-j",
		string(tiling.CmdSwapCCW):             "Mod4-Mod1-Shift-k",
		string(tiling.CmdSwapMain):            "Mod4-Mod1-Return",
		string(tiling.CmdToggleFloat):         "Mod4-Mod1-t",
		string(tiling.CmdToggleTiling):        "Mod4-Mod1-Shift-t",
		string(tiling.CmdReevaluate):          "Mod4-Mod1-z",
	}
}

// Binding splits a hotkey name into its command and argument. Layout
// selection is bound as select-layout:<key>.
func Binding(name string) (tiling.Command, string, error) {
	cmdName, arg, hasArg := strings.Cut(name, ":")
	cmd, err := tiling.ParseCommand(cmdName)
	if err != nil {
		return "", "", err
	}
	if cmd == tiling.CmdSelectLayout {
		if !hasArg || arg == "" {
			return "", "", fmt.Errorf("select-layout binding needs a layout key, e.g. select-layout:%s", layout.KeyBSP)
		}
	} else if hasArg {
		return "", "", fmt.Errorf("command %s takes no argument", cmd)
	}
	return cmd, arg, nil
}

// Level maps log_level onto a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.ScriptTimeoutMS) * time.Millisecond
}

// TilingOptions converts the configuration into manager options.
func (c *Config) TilingOptions() tiling.Options {
	return tiling.Options{
		Layouts:       append([]string(nil), c.Layouts...),
		TilingEnabled: c.TilingEnabled,
		Settings: layout.Settings{
			MarginsEnabled: c.WindowMargins,
			MarginSize:     c.WindowMarginSize,
			MinimumWidth:   c.WindowMinimumWidth,
			MinimumHeight:  c.WindowMinimumHeight,
			RatioStep:      c.RatioStep,
		},
		Padding: tiling.Padding{
			Top:    c.ScreenPadding.Top,
			Right:  c.ScreenPadding.Right,
			Bottom: c.ScreenPadding.Bottom,
			Left:   c.ScreenPadding.Left,
		},
		NewWindowsToMain: c.NewWindowsToMain,
		Debounce:         time.Duration(c.ReflowDebounceMS) * time.Millisecond,
		SpaceSwitchDelay: time.Duration(c.SpaceSwitchDelayMS) * time.Millisecond,
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if len(c.Layouts) == 0 {
		return &ValidationError{Path: "layouts", Err: fmt.Errorf("layouts must not be empty")}
	}
	seen := make(map[string]bool, len(c.Layouts))
	for i, key := range c.Layouts {
		path := fmt.Sprintf("layouts[%d]", i)
		if seen[key] {
			return &ValidationError{Path: "layouts", Err: fmt.Errorf("layout %q listed twice", key)}
		}
		seen[key] = true
		if name, ok := strings.CutPrefix(key, layout.CustomPrefix); ok {
			if _, ok := c.CustomLayouts[name]; !ok {
				return &ValidationError{Path: path, Err: fmt.Errorf("%s is not defined in custom_layouts", key)}
			}
			continue
		}
		if !isBuiltin(key) {
			return &ValidationError{Path: path, Err: fmt.Errorf("unknown layout %q", key)}
		}
	}
	for name, script := range c.CustomLayouts {
		if strings.TrimSpace(name) == "" || strings.Contains(name, ":") {
			return &ValidationError{Path: "custom_layouts", Err: fmt.Errorf("invalid custom layout name %q", name)}
		}
		if strings.TrimSpace(script) == "" {
			return &ValidationError{Path: "custom_layouts." + name, Err: fmt.Errorf("script path must not be empty")}
		}
	}
	if c.WindowMarginSize < 0 {
		return &ValidationError{Path: "window_margin_size", Err: fmt.Errorf("window_margin_size must be >= 0")}
	}
	if c.WindowMinimumWidth < 0 || c.WindowMinimumHeight < 0 {
		return &ValidationError{Path: "window_minimum_width", Err: fmt.Errorf("window minimum sizes must be >= 0")}
	}
	if c.ScreenPadding.Top < 0 || c.ScreenPadding.Bottom < 0 || c.ScreenPadding.Left < 0 || c.ScreenPadding.Right < 0 {
		return &ValidationError{Path: "screen_padding", Err: fmt.Errorf("screen_padding values must be >= 0")}
	}
	if c.RatioStep <= 0 || c.RatioStep >= 1 {
		return &ValidationError{Path: "ratio_step", Err: fmt.Errorf("ratio_step must be between 0 and 1")}
	}
	for i, title := range c.FloatTitles {
		if strings.TrimSpace(title) == "" {
			return &ValidationError{Path: fmt.Sprintf("float_titles[%d]", i), Err: fmt.Errorf("title pattern must not be empty")}
		}
	}
	if c.ReflowDebounceMS < 0 {
		return &ValidationError{Path: "reflow_debounce_ms", Err: fmt.Errorf("reflow_debounce_ms must be >= 0")}
	}
	if c.SpaceSwitchDelayMS < 0 {
		return &ValidationError{Path: "space_switch_delay_ms", Err: fmt.Errorf("space_switch_delay_ms must be >= 0")}
	}
	if c.PollIntervalMS < 10 {
		return &ValidationError{Path: "poll_interval_ms", Err: fmt.Errorf("poll_interval_ms must be >= 10")}
	}
	if c.ScriptTimeoutMS <= 0 {
		return &ValidationError{Path: "script_timeout_ms", Err: fmt.Errorf("script_timeout_ms must be > 0")}
	}
	if c.Hotkeys == nil {
		return &ValidationError{Path: "hotkeys", Err: fmt.Errorf("hotkeys must not be null")}
	}
	for name, key := range c.Hotkeys {
		if _, _, err := Binding(name); err != nil {
			return &ValidationError{Path: "hotkeys." + name, Err: err}
		}
		if strings.TrimSpace(key) == "" {
			return &ValidationError{Path: "hotkeys." + name, Err: fmt.Errorf("key must not be empty")}
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	return nil
}

func isBuiltin(key string) bool {
	return slices.Contains(layout.BuiltinKeys(), key)
}
