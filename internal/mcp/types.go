package mcp

import (
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput struct {
	TilingEnabled bool                  `json:"tiling_enabled"`
	Desktop       int                   `json:"desktop"`
	Focused       uint32                `json:"focused"`
	Windows       int                   `json:"windows"`
	Layouts       []string              `json:"layouts"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Screens       []tiling.ScreenStatus `json:"screens"`
}

// ListLayoutsInput is the input for the list_layouts tool.
type ListLayoutsInput struct{}

// LayoutInfo describes a single layout.
type LayoutInfo struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// ListLayoutsOutput is the output for the list_layouts tool.
type ListLayoutsOutput struct {
	Layouts []LayoutInfo      `json:"layouts"`
	Cycle   []string          `json:"cycle"`
	Active  map[string]string `json:"active"`
}

// SelectLayoutInput is the input for the select_layout tool.
type SelectLayoutInput struct {
	Layout string `json:"layout" jsonschema:"Layout key from list_layouts, e.g. tall, bsp or custom:<name>. Must be in the configured cycle."`
}

// CycleLayoutInput is the input for the cycle_layout tool.
type CycleLayoutInput struct {
	Step int `json:"step,omitempty" jsonschema:"Entries to move through the layout cycle; negative goes backward (default: 1)"`
}

// LayoutOutput reports the layout a tool activated.
type LayoutOutput struct {
	Layout string `json:"layout"`
}

// RunCommandInput is the input for the run_command tool.
type RunCommandInput struct {
	Command string `json:"command" jsonschema:"Command name, e.g. swap-main, expand-main, focus-cw, toggle-float"`
	Arg     string `json:"arg,omitempty" jsonschema:"Layout key for select-layout; ignored by other commands"`
}

// RunCommandOutput is the output for the run_command tool.
type RunCommandOutput struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
}

// PreviewLayoutInput is the input for the preview_layout tool.
type PreviewLayoutInput struct {
	Layout  string `json:"layout" jsonschema:"Layout key to compute"`
	Windows int    `json:"windows,omitempty" jsonschema:"Number of synthetic windows (default: 3, max: 64)"`
	Columns int    `json:"columns,omitempty" jsonschema:"Width of the ASCII diagram in characters (default: 60)"`
}

// PreviewLayoutOutput is the output for the preview_layout tool.
type PreviewLayoutOutput struct {
	Layout  string                `json:"layout"`
	Name    string                `json:"name"`
	Screen  layout.Rect           `json:"screen"`
	Frames  []tiling.PreviewFrame `json:"frames"`
	Diagram string                `json:"diagram"`
}
