package config

import (
	"fmt"
	"strings"
)

// ValidationError ties a configuration error to its YAML path and, when
// known, the file position that set it.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies raw on top of the defaults. A hotkey bound
// to an empty key removes the default binding.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if raw.Layouts != nil {
		cfg.Layouts = trimAll(raw.Layouts)
	}
	if raw.TilingEnabled != nil {
		cfg.TilingEnabled = *raw.TilingEnabled
	}
	if raw.WindowMargins != nil {
		cfg.WindowMargins = *raw.WindowMargins
	}
	cfg.WindowMarginSize = derefInt(raw.WindowMarginSize, cfg.WindowMarginSize)
	cfg.WindowMinimumWidth = derefInt(raw.WindowMinimumWidth, cfg.WindowMinimumWidth)
	cfg.WindowMinimumHeight = derefInt(raw.WindowMinimumHeight, cfg.WindowMinimumHeight)
	if raw.ScreenPadding != nil {
		cfg.ScreenPadding = Margins{
			Top:    derefInt(raw.ScreenPadding.Top, cfg.ScreenPadding.Top),
			Bottom: derefInt(raw.ScreenPadding.Bottom, cfg.ScreenPadding.Bottom),
			Left:   derefInt(raw.ScreenPadding.Left, cfg.ScreenPadding.Left),
			Right:  derefInt(raw.ScreenPadding.Right, cfg.ScreenPadding.Right),
		}
	}
	if raw.RatioStep != nil {
		cfg.RatioStep = *raw.RatioStep
	}
	if raw.FloatApps != nil {
		cfg.FloatApps = raw.FloatApps
	}
	if raw.FloatTitles != nil {
		cfg.FloatTitles = raw.FloatTitles
	}
	if raw.NewWindowsToMain != nil {
		cfg.NewWindowsToMain = *raw.NewWindowsToMain
	}
	cfg.ReflowDebounceMS = derefInt(raw.ReflowDebounceMS, cfg.ReflowDebounceMS)
	cfg.SpaceSwitchDelayMS = derefInt(raw.SpaceSwitchDelayMS, cfg.SpaceSwitchDelayMS)
	cfg.PollIntervalMS = derefInt(raw.PollIntervalMS, cfg.PollIntervalMS)
	for name, path := range raw.CustomLayouts {
		cfg.CustomLayouts[name] = path
	}
	cfg.ScriptTimeoutMS = derefInt(raw.ScriptTimeoutMS, cfg.ScriptTimeoutMS)
	for name, key := range raw.Hotkeys {
		if strings.TrimSpace(key) == "" {
			delete(cfg.Hotkeys, name)
			continue
		}
		cfg.Hotkeys[name] = key
	}
	if raw.MetricsAddr != nil {
		cfg.MetricsAddr = strings.TrimSpace(*raw.MetricsAddr)
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.Display != nil {
		cfg.Display = *raw.Display
	}

	return cfg
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
