package config

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawMargins struct {
	Top    *int `yaml:"top"`
	Bottom *int `yaml:"bottom"`
	Left   *int `yaml:"left"`
	Right  *int `yaml:"right"`
}

// RawConfig is one file's view of the configuration; nil means unset.
type RawConfig struct {
	Include             IncludeList       `yaml:"include"`
	Layouts             []string          `yaml:"layouts"`
	TilingEnabled       *bool             `yaml:"tiling_enabled"`
	WindowMargins       *bool             `yaml:"window_margins"`
	WindowMarginSize    *int              `yaml:"window_margin_size"`
	WindowMinimumWidth  *int              `yaml:"window_minimum_width"`
	WindowMinimumHeight *int              `yaml:"window_minimum_height"`
	ScreenPadding       *RawMargins       `yaml:"screen_padding"`
	RatioStep           *float64          `yaml:"ratio_step"`
	FloatApps           FloatAppList      `yaml:"float_apps"`
	FloatTitles         []string          `yaml:"float_titles"`
	NewWindowsToMain    *bool             `yaml:"new_windows_to_main"`
	ReflowDebounceMS    *int              `yaml:"reflow_debounce_ms"`
	SpaceSwitchDelayMS  *int              `yaml:"space_switch_delay_ms"`
	PollIntervalMS      *int              `yaml:"poll_interval_ms"`
	CustomLayouts       map[string]string `yaml:"custom_layouts"`
	ScriptTimeoutMS     *int              `yaml:"script_timeout_ms"`
	Hotkeys             map[string]string `yaml:"hotkeys"`
	MetricsAddr         *string           `yaml:"metrics_addr"`
	LogLevel            *string           `yaml:"log_level"`
	Display             *string           `yaml:"display"`
}

// merge overlays another file. Lists are replaced, maps are merged key by
// key, scalars win when set.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Layouts != nil {
		out.Layouts = overlay.Layouts
	}
	if overlay.TilingEnabled != nil {
		out.TilingEnabled = overlay.TilingEnabled
	}
	if overlay.WindowMargins != nil {
		out.WindowMargins = overlay.WindowMargins
	}
	if overlay.WindowMarginSize != nil {
		out.WindowMarginSize = overlay.WindowMarginSize
	}
	if overlay.WindowMinimumWidth != nil {
		out.WindowMinimumWidth = overlay.WindowMinimumWidth
	}
	if overlay.WindowMinimumHeight != nil {
		out.WindowMinimumHeight = overlay.WindowMinimumHeight
	}
	if overlay.ScreenPadding != nil {
		base := RawMargins{}
		if out.ScreenPadding != nil {
			base = *out.ScreenPadding
		}
		merged := mergeRawMargins(base, *overlay.ScreenPadding)
		out.ScreenPadding = &merged
	}
	if overlay.RatioStep != nil {
		out.RatioStep = overlay.RatioStep
	}
	if overlay.FloatApps != nil {
		out.FloatApps = overlay.FloatApps
	}
	if overlay.FloatTitles != nil {
		out.FloatTitles = overlay.FloatTitles
	}
	if overlay.NewWindowsToMain != nil {
		out.NewWindowsToMain = overlay.NewWindowsToMain
	}
	if overlay.ReflowDebounceMS != nil {
		out.ReflowDebounceMS = overlay.ReflowDebounceMS
	}
	if overlay.SpaceSwitchDelayMS != nil {
		out.SpaceSwitchDelayMS = overlay.SpaceSwitchDelayMS
	}
	if overlay.PollIntervalMS != nil {
		out.PollIntervalMS = overlay.PollIntervalMS
	}
	if overlay.CustomLayouts != nil {
		out.CustomLayouts = mergeStrings(out.CustomLayouts, overlay.CustomLayouts)
	}
	if overlay.ScriptTimeoutMS != nil {
		out.ScriptTimeoutMS = overlay.ScriptTimeoutMS
	}
	if overlay.Hotkeys != nil {
		out.Hotkeys = mergeStrings(out.Hotkeys, overlay.Hotkeys)
	}
	if overlay.MetricsAddr != nil {
		out.MetricsAddr = overlay.MetricsAddr
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.Display != nil {
		out.Display = overlay.Display
	}

	return out
}

func mergeStrings(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	maps.Copy(out, base)
	maps.Copy(out, overlay)
	return out
}

func mergeRawMargins(base RawMargins, overlay RawMargins) RawMargins {
	out := base
	if overlay.Top != nil {
		out.Top = overlay.Top
	}
	if overlay.Bottom != nil {
		out.Bottom = overlay.Bottom
	}
	if overlay.Left != nil {
		out.Left = overlay.Left
	}
	if overlay.Right != nil {
		out.Right = overlay.Right
	}
	return out
}
