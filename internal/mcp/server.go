package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/tiling"
)

const (
	ServerName    = "tessel"
	ServerVersion = "0.1.0"
)

// Daemon is the running tiling daemon. *ipc.Client implements it.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	ListLayouts() (*ipc.LayoutsData, error)
	SelectLayout(key string) error
	CycleLayout(step int) (string, error)
	Run(cmd tiling.Command, arg string) error
	PreviewLayout(key string, windows int) (*tiling.PreviewResult, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Server exposes layout control to MCP clients.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates an MCP server that forwards to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{daemon: daemon, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the tiling daemon's state: whether tiling is enabled, the current desktop, and for every screen its active layout, reflow state, tiled and floating window counts and main pane parameters.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_layouts",
		Description: "List every available layout key with its display name, the configured layout cycle, and the active layout of each screen.",
	}, s.handleListLayouts)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "select_layout",
		Description: "Activate a layout on the focused screen's current desktop. The layout must be in the configured cycle.",
	}, s.handleSelectLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cycle_layout",
		Description: "Move the focused screen to the next (or previous, with a negative step) layout in the configured cycle.",
	}, s.handleCycleLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "run_command",
		Description: "Run a tiling command against the focused screen: shrink-main, expand-main, increase-main, decrease-main, focus-cw, focus-ccw, swap-cw, swap-ccw, swap-main, toggle-float, toggle-tiling, reevaluate, command1-command4, cycle-layout, cycle-layout-backward or select-layout (with arg).",
	}, s.handleRunCommand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "preview_layout",
		Description: "Compute where a layout would place N windows on the focused screen without moving anything. Returns the frames and an ASCII diagram.",
	}, s.handlePreviewLayout)
}
