package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/tessel/internal/runtimepath"
	"github.com/1broseidon/tessel/internal/tiling"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the socket at path.
func NewClientAt(path string) *Client {
	return &Client{
		socketPath: path,
		timeout:    15 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(command CommandType, payload any) (*Response, error) {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func decode[T any](resp *Response, what string) (*T, error) {
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s data: %w", what, err)
	}
	return &out, nil
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload() error {
	_, err := c.sendRequest(CommandReload, nil)
	return err
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.sendRequest(CommandGetStatus, nil)
	if err != nil {
		return nil, err
	}
	return decode[StatusData](resp, "status")
}

// ListLayouts retrieves registered layouts and each screen's selection.
func (c *Client) ListLayouts() (*LayoutsData, error) {
	resp, err := c.sendRequest(CommandListLayouts, nil)
	if err != nil {
		return nil, err
	}
	return decode[LayoutsData](resp, "layouts")
}

// SelectLayout activates key on the focused screen.
func (c *Client) SelectLayout(key string) error {
	_, err := c.sendRequest(CommandSelectLayout, SelectLayoutPayload{Layout: key})
	return err
}

// CycleLayout moves the focused screen step entries through its cycle.
func (c *Client) CycleLayout(step int) (string, error) {
	resp, err := c.sendRequest(CommandCycleLayout, CycleLayoutPayload{Step: step})
	if err != nil {
		return "", err
	}
	data, err := decode[CycleLayoutData](resp, "cycle")
	if err != nil {
		return "", err
	}
	return data.Layout, nil
}

// Run executes a tiling command.
func (c *Client) Run(cmd tiling.Command, arg string) error {
	_, err := c.sendRequest(CommandRun, RunCommandPayload{Command: string(cmd), Arg: arg})
	return err
}

// PreviewLayout computes key for n windows on the daemon's focused screen.
func (c *Client) PreviewLayout(key string, windows int) (*tiling.PreviewResult, error) {
	resp, err := c.sendRequest(CommandPreviewLayout, PreviewLayoutPayload{Layout: key, Windows: windows})
	if err != nil {
		return nil, err
	}
	return decode[tiling.PreviewResult](resp, "preview")
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
