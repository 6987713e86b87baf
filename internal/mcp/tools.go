package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tessel/internal/tiling"
)

const (
	defaultPreviewWindows = 3
	defaultPreviewColumns = 60
	maxPreviewColumns     = 200
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, err
	}
	return nil, GetStatusOutput{
		TilingEnabled: st.TilingEnabled,
		Desktop:       st.Desktop,
		Focused:       st.Focused,
		Windows:       st.Windows,
		Layouts:       st.Layouts,
		UptimeSeconds: st.UptimeSeconds,
		Screens:       st.Screens,
	}, nil
}

func (s *Server) handleListLayouts(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListLayoutsInput) (*mcpsdk.CallToolResult, ListLayoutsOutput, error) {
	data, err := s.daemon.ListLayouts()
	if err != nil {
		return nil, ListLayoutsOutput{}, err
	}
	out := ListLayoutsOutput{Cycle: data.Cycle, Active: data.Active}
	for _, l := range data.Layouts {
		out.Layouts = append(out.Layouts, LayoutInfo{Key: l.Key, Name: l.Name, Configured: l.Configured})
	}
	return nil, out, nil
}

func (s *Server) handleSelectLayout(_ context.Context, _ *mcpsdk.CallToolRequest, args SelectLayoutInput) (*mcpsdk.CallToolResult, LayoutOutput, error) {
	key := strings.TrimSpace(args.Layout)
	if key == "" {
		return nil, LayoutOutput{}, fmt.Errorf("layout is required")
	}
	if err := s.daemon.SelectLayout(key); err != nil {
		return nil, LayoutOutput{}, err
	}
	s.logger.Info("layout selected over MCP", "layout", key)
	return nil, LayoutOutput{Layout: key}, nil
}

func (s *Server) handleCycleLayout(_ context.Context, _ *mcpsdk.CallToolRequest, args CycleLayoutInput) (*mcpsdk.CallToolResult, LayoutOutput, error) {
	step := args.Step
	if step == 0 {
		step = 1
	}
	key, err := s.daemon.CycleLayout(step)
	if err != nil {
		return nil, LayoutOutput{}, err
	}
	return nil, LayoutOutput{Layout: key}, nil
}

func (s *Server) handleRunCommand(_ context.Context, _ *mcpsdk.CallToolRequest, args RunCommandInput) (*mcpsdk.CallToolResult, RunCommandOutput, error) {
	cmd, err := tiling.ParseCommand(strings.TrimSpace(args.Command))
	if err != nil {
		return nil, RunCommandOutput{}, err
	}
	if cmd == tiling.CmdSelectLayout && args.Arg == "" {
		return nil, RunCommandOutput{}, fmt.Errorf("select-layout needs arg set to a layout key")
	}
	if err := s.daemon.Run(cmd, args.Arg); err != nil {
		return nil, RunCommandOutput{Command: string(cmd)}, err
	}
	return nil, RunCommandOutput{Command: string(cmd), OK: true}, nil
}

func (s *Server) handlePreviewLayout(_ context.Context, _ *mcpsdk.CallToolRequest, args PreviewLayoutInput) (*mcpsdk.CallToolResult, PreviewLayoutOutput, error) {
	if strings.TrimSpace(args.Layout) == "" {
		return nil, PreviewLayoutOutput{}, fmt.Errorf("layout is required")
	}
	windows := args.Windows
	if windows <= 0 {
		windows = defaultPreviewWindows
	}
	cols := args.Columns
	if cols <= 0 {
		cols = defaultPreviewColumns
	}
	cols = min(cols, maxPreviewColumns)

	res, err := s.daemon.PreviewLayout(strings.TrimSpace(args.Layout), windows)
	if err != nil {
		return nil, PreviewLayoutOutput{}, err
	}
	return nil, PreviewLayoutOutput{
		Layout:  res.Layout,
		Name:    res.Name,
		Screen:  res.Screen,
		Frames:  res.Frames,
		Diagram: tiling.RenderASCII(*res, cols, tiling.DiagramRows(*res, cols)),
	}, nil
}
