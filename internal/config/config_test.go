package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

func writeConfig(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	opts := cfg.TilingOptions()
	if opts.Debounce != 50*time.Millisecond || opts.SpaceSwitchDelay != 300*time.Millisecond {
		t.Fatalf("unexpected default timings: %v %v", opts.Debounce, opts.SpaceSwitchDelay)
	}
	if opts.Layouts[0] != layout.KeyTall {
		t.Fatalf("expected tall first, got %v", opts.Layouts)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files loaded, got %v", res.Files)
	}
	if !res.Config.TilingEnabled {
		t.Fatalf("expected tiling enabled by default")
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "# empty\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.RatioStep != 0.05 {
		t.Fatalf("expected ratio_step 0.05, got %v", res.Config.RatioStep)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	data := `
layouts: [bsp, "tall", "custom:spiral"]
window_margins: true
window_margin_size: 12
screen_padding:
  top: 30
ratio_step: 0.1
new_windows_to_main: true
custom_layouts:
  spiral: ~/layouts/spiral.js
hotkeys:
  toggle-float: ""
  "select-layout:bsp": Mod4-b
log_level: debug
`
	path := writeConfig(t, t.TempDir(), "config.yaml", data)
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config

	if got := strings.Join(cfg.Layouts, ","); got != "bsp,tall,custom:spiral" {
		t.Fatalf("unexpected layouts %q", got)
	}
	opts := cfg.TilingOptions()
	if !opts.Settings.MarginsEnabled || opts.Settings.MarginSize != 12 || opts.Settings.RatioStep != 0.1 {
		t.Fatalf("unexpected settings %+v", opts.Settings)
	}
	if opts.Padding != (tiling.Padding{Top: 30}) {
		t.Fatalf("unexpected padding %+v", opts.Padding)
	}
	if !opts.NewWindowsToMain {
		t.Fatalf("expected new_windows_to_main")
	}
	if _, ok := cfg.Hotkeys["toggle-float"]; ok {
		t.Fatalf("expected empty key to unbind toggle-float")
	}
	if cfg.Hotkeys["select-layout:bsp"] != "Mod4-b" {
		t.Fatalf("expected select-layout binding, got %v", cfg.Hotkeys)
	}
	if cfg.Hotkeys["cycle-layout"] == "" {
		t.Fatalf("expected default bindings kept")
	}
	if cfg.Level().String() != "DEBUG" {
		t.Fatalf("expected debug level, got %s", cfg.Level())
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "unknown_key: 1\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	cases := []struct {
		name string
		data string
		path string
		line string
	}{
		{"unknown layout", "layouts:\n  - tall\n  - spiral\n", "layouts[1]", ":3:"},
		{"undefined custom", "layouts: [\"custom:nope\"]\n", "layouts[0]", ":1:"},
		{"ratio step", "\nratio_step: 2\n", "ratio_step", ":2:"},
		{"hotkey command", "hotkeys:\n  explode: Mod4-x\n", "hotkeys.explode", ":2:"},
		{"select without key", "hotkeys:\n  select-layout: Mod4-x\n", "hotkeys.select-layout", ":2:"},
		{"log level", "log_level: loud\n", "log_level", ":1:"},
		{"padding", "screen_padding:\n  left: -1\n", "screen_padding", ":2:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tc.data)
			_, err := LoadFromPath(path)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tc.path {
				t.Fatalf("expected path %q, got %q", tc.path, verr.Path)
			}
			if !strings.Contains(err.Error(), path+tc.line) {
				t.Fatalf("expected %s%s in error, got %v", path, tc.line, err)
			}
		})
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()

	// config.d loaded first, in sorted order.
	configD := filepath.Join(dir, "config.d")
	if err := os.MkdirAll(configD, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfig(t, configD, "10-base.yaml", "window_margin_size: 5\nfloat_titles: [Preferences]\n")
	writeConfig(t, configD, "20-override.yaml", "window_margin_size: 6\n")

	// Main file overrides includes.
	path := writeConfig(t, dir, "config.yaml", "include:\n  - config.d\nwindow_margin_size: 7\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.WindowMarginSize != 7 {
		t.Fatalf("expected window_margin_size to be 7, got %d", res.Config.WindowMarginSize)
	}
	if len(res.Config.FloatTitles) != 1 || res.Config.FloatTitles[0] != "Preferences" {
		t.Fatalf("expected float_titles from include, got %v", res.Config.FloatTitles)
	}
	if len(res.Files) != 3 || !strings.HasSuffix(res.Files[2], "config.yaml") {
		t.Fatalf("expected includes before main file, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "include:\n  - missing.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "include") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected include error, got %v", err)
	}
	if !strings.Contains(err.Error(), path+":") {
		t.Fatalf("expected error to include file:line:col prefix, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := writeConfig(t, dir, "a.yaml", "include: b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include: a.yaml\n")

	_, err := LoadFromPath(a)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestLoadFromPath_FloatAppsSupportsStringsAndMappings(t *testing.T) {
	data := `
float_apps:
  - pavucontrol
  - class: firefox
    titles: ["Picture-in-Picture"]
`
	path := writeConfig(t, t.TempDir(), "config.yaml", data)
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	apps := res.Config.FloatApps
	if len(apps) != 2 || apps[0].Class != "pavucontrol" || apps[1].Titles[0] != "Picture-in-Picture" {
		t.Fatalf("unexpected float_apps %+v", apps)
	}

	bad := writeConfig(t, t.TempDir(), "config.yaml", "float_apps:\n  - titles: [x]\n")
	if _, err := LoadFromPath(bad); err == nil || !strings.Contains(err.Error(), "class is required") {
		t.Fatalf("expected missing class error, got %v", err)
	}
}

func TestExplain(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "layouts: [wide, bsp]\nfloat_apps: [Gimp]\n")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "layouts[1]")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "bsp" || src.Kind != SourceFile || src.Line != 1 {
		t.Fatalf("expected bsp from line 1, got %#v %#v", val, src)
	}

	val, src, err = Explain(res, "float_apps[0].class")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "Gimp" {
		t.Fatalf("expected Gimp, got %#v", val)
	}

	val, src, err = Explain(res, "screen_padding.top")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != 0 || src.Kind != SourceDefault {
		t.Fatalf("expected default 0, got %#v %#v", val, src)
	}

	if _, _, err := Explain(res, "layouts[9]"); err == nil {
		t.Fatalf("expected out of range path to fail")
	}
}

func TestSaveToRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Layouts = []string{layout.KeyBSP, layout.KeyStage}
	cfg.FloatApps = FloatAppList{{Class: "firefox", Titles: []string{"Library"}}}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load saved: %v", err)
	}
	if res.Config.Layouts[1] != layout.KeyStage || res.Config.FloatApps[0].Titles[0] != "Library" {
		t.Fatalf("saved config did not load back: %+v", res.Config)
	}

	cfg.RatioStep = 0
	if err := cfg.SaveTo(path); err == nil {
		t.Fatalf("expected invalid config to be refused")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv(PathEnv, "/tmp/elsewhere.yaml")
	got, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if got != "/tmp/elsewhere.yaml" {
		t.Fatalf("expected env override, got %s", got)
	}
}

func TestScriptPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	cases := []struct {
		script string
		want   string
	}{
		{"layouts/spiral.js", "/etc/tessel/layouts/spiral.js"},
		{"/opt/grid.js", "/opt/grid.js"},
		{"~/grid.js", filepath.Join(home, "grid.js")},
	}
	for _, tc := range cases {
		t.Run(tc.script, func(t *testing.T) {
			got, err := ScriptPath("/etc/tessel/config.yaml", tc.script)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBinding(t *testing.T) {
	cases := []struct {
		name    string
		cmd     tiling.Command
		arg     string
		wantErr bool
	}{
		{"cycle-layout", tiling.CmdCycleLayout, "", false},
		{"select-layout:bsp", tiling.CmdSelectLayout, "bsp", false},
		{"select-layout", "", "", true},
		{"swap-main:x", "", "", true},
		{"explode", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, arg, err := Binding(tc.name)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if cmd != tc.cmd || arg != tc.arg {
				t.Fatalf("expected %s %q, got %s %q", tc.cmd, tc.arg, cmd, arg)
			}
		})
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "ratio_step: 0.1\n")

	changes := make(chan *Config, 4)
	w := NewWatcher(WatcherConfig{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(res *LoadResult) { changes <- res.Config },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is ignored.
	writeConfig(t, dir, "config.yaml", "ratio_step: 5\n")
	select {
	case cfg := <-changes:
		t.Fatalf("expected invalid config to be skipped, got %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}

	writeConfig(t, dir, "config.yaml", "ratio_step: 0.2\n")
	select {
	case cfg := <-changes:
		if cfg.RatioStep != 0.2 {
			t.Fatalf("expected ratio_step 0.2, got %v", cfg.RatioStep)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}

	// Unrelated files in the directory are ignored.
	writeConfig(t, dir, "notes.txt", "hello")
	select {
	case cfg := <-changes:
		t.Fatalf("unexpected reload %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
