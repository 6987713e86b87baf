package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Paths use the YAML keys joined by dots, with [n] for list entries:
//
//	layouts
//	layouts[1]
//	screen_padding.top
//	hotkeys.cycle-layout
//	float_apps[0].class
//	custom_layouts.<name>
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

// lookupValue walks the config's YAML form. Float apps are expanded to
// mappings so every entry has a class key.
func lookupValue(cfg *Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	apps := make([]any, 0, len(cfg.FloatApps))
	for _, app := range cfg.FloatApps {
		entry := map[string]any{"class": app.Class}
		if len(app.Titles) > 0 {
			titles := make([]any, 0, len(app.Titles))
			for _, t := range app.Titles {
				titles = append(titles, t)
			}
			entry["titles"] = titles
		}
		apps = append(apps, entry)
	}
	tree["float_apps"] = apps

	var cur any = tree
	for _, seg := range splitPath(path) {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("unknown path: %s", path)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("unknown path: %s", path)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("unknown path: %s", path)
		}
	}
	return cur, nil
}

// splitPath turns "a.b[2].c" into ["a", "b", "2", "c"]. Hotkey names may
// contain a colon but never a dot.
func splitPath(path string) []string {
	var out []string
	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 || !strings.HasSuffix(part, "]") {
				break
			}
			if open > 0 {
				out = append(out, part[:open])
			}
			inner := part[open+1:]
			end := strings.IndexByte(inner, ']')
			out = append(out, inner[:end])
			part = inner[end+1:]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
