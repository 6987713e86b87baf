package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/runtimepath"
	"github.com/1broseidon/tessel/internal/tiling"
)

const commandTimeout = 10 * time.Second

// Controller is the daemon surface the server drives. *tiling.Manager
// implements it.
type Controller interface {
	Status() tiling.Status
	Options() tiling.Options
	Registry() *layout.Registry
	Execute(ctx context.Context, cmd tiling.Command, arg string) error
	CycleLayout(step int) (string, error)
	SelectLayout(key string) error
	Preview(key string, windows int) (tiling.PreviewResult, error)
}

var _ Controller = (*tiling.Manager)(nil)

// ServerConfig configures a Server.
type ServerConfig struct {
	// SocketPath defaults to runtimepath.SocketPath().
	SocketPath string
	Controller Controller
	// Reload reloads the configuration from disk and applies it.
	Reload func() error
	Logger *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	ctrl         Controller
	reload       func() error
	logger       *slog.Logger
	startTime    time.Time
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		p, err := runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
		socketPath = p
	}
	if cfg.Controller == nil {
		return nil, errors.New("ipc server needs a controller")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		ctrl:       cfg.Controller,
		reload:     cfg.Reload,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			stopping := s.shuttingDown
			s.shutdownMu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(commandTimeout + time.Second))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandListLayouts:
		return s.handleListLayouts()
	case CommandSelectLayout:
		return s.handleSelectLayout(req.Payload)
	case CommandCycleLayout:
		return s.handleCycleLayout(req.Payload)
	case CommandRun:
		return s.handleRunCommand(req.Payload)
	case CommandPreviewLayout:
		return s.handlePreviewLayout(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	if s.reload == nil {
		return NewErrorResponse("reload not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	s.logger.Info("config reloaded over IPC")
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	return ok(StatusData{
		Status:        s.ctrl.Status(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
	})
}

func (s *Server) handleListLayouts() *Response {
	return ok(ListLayouts(s.ctrl))
}

// ListLayouts describes every registered layout and what each screen
// currently shows.
func ListLayouts(ctrl Controller) LayoutsData {
	reg := ctrl.Registry()
	cycle := ctrl.Options().Layouts
	data := LayoutsData{
		Cycle:  slices.Clone(cycle),
		Active: map[string]string{},
	}
	for _, key := range reg.Keys() {
		info := LayoutInfo{Key: key, Name: key, Configured: slices.Contains(cycle, key)}
		if l, err := reg.New(key); err == nil {
			info.Name = l.Name()
		}
		data.Layouts = append(data.Layouts, info)
	}
	for _, sc := range ctrl.Status().Screens {
		data.Active[sc.ID] = sc.Layout
	}
	return data
}

func (s *Server) handleSelectLayout(payload json.RawMessage) *Response {
	var req SelectLayoutPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid select payload: %v", err))
	}
	if req.Layout == "" {
		return NewErrorResponse("layout is required")
	}
	if err := s.ctrl.SelectLayout(req.Layout); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to select layout: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleCycleLayout(payload json.RawMessage) *Response {
	req := CycleLayoutPayload{Step: 1}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid cycle payload: %v", err))
		}
	}
	if req.Step == 0 {
		return NewErrorResponse("step must not be zero")
	}
	key, err := s.ctrl.CycleLayout(req.Step)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to cycle layout: %v", err))
	}
	return ok(CycleLayoutData{Layout: key})
}

func (s *Server) handleRunCommand(payload json.RawMessage) *Response {
	var req RunCommandPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid command payload: %v", err))
	}
	cmd, err := tiling.ParseCommand(req.Command)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := s.ctrl.Execute(ctx, cmd, req.Arg); err != nil {
		return NewErrorResponse(fmt.Sprintf("Command %s failed: %v", cmd, err))
	}
	return ok(nil)
}

func (s *Server) handlePreviewLayout(payload json.RawMessage) *Response {
	var req PreviewLayoutPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid preview payload: %v", err))
	}
	res, err := s.ctrl.Preview(req.Layout, req.Windows)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to preview layout: %v", err))
	}
	return ok(res)
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server and waits for open
// connections to finish.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}
