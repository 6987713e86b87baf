package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/tessel/internal/tiling"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload        CommandType = "RELOAD"
	CommandGetStatus     CommandType = "GET_STATUS"
	CommandListLayouts   CommandType = "LIST_LAYOUTS"
	CommandSelectLayout  CommandType = "SELECT_LAYOUT"
	CommandCycleLayout   CommandType = "CYCLE_LAYOUT"
	CommandRun           CommandType = "RUN_COMMAND"
	CommandPreviewLayout CommandType = "PREVIEW_LAYOUT"
)

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	tiling.Status
	UptimeSeconds int64 `json:"uptime_seconds"`
	DaemonRunning bool  `json:"daemon_running"`
}

// LayoutInfo describes one registered layout.
type LayoutInfo struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// LayoutsData represents the data returned by LIST_LAYOUTS
type LayoutsData struct {
	Layouts []LayoutInfo `json:"layouts"`
	// Cycle is the configured per-desktop cycle in order.
	Cycle []string `json:"cycle"`
	// Active maps screen ids to their active layout key.
	Active map[string]string `json:"active"`
}

type SelectLayoutPayload struct {
	Layout string `json:"layout"`
}

type CycleLayoutPayload struct {
	Step int `json:"step"`
}

// CycleLayoutData is the layout a cycle landed on.
type CycleLayoutData struct {
	Layout string `json:"layout"`
}

type RunCommandPayload struct {
	Command string `json:"command"`
	Arg     string `json:"arg,omitempty"`
}

type PreviewLayoutPayload struct {
	Layout  string `json:"layout"`
	Windows int    `json:"windows"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data any) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
