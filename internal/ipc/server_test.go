package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

type frameMover struct {
	mu     sync.Mutex
	frames map[layout.WindowID]layout.Rect
}

func (m *frameMover) SetFrame(id layout.WindowID, frame layout.Rect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames[id] = frame
	return nil
}

func (m *frameMover) Frame(id layout.WindowID) (layout.Rect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames[id], nil
}

func startServer(t *testing.T, reload func() error) (*Client, *tiling.Manager) {
	t.Helper()
	mgr := tiling.NewManager(tiling.ManagerConfig{
		Options: tiling.DefaultOptions(),
		Applier: tiling.NewApplier(&frameMover{frames: map[layout.WindowID]layout.Rect{}}, nil),
	})
	mgr.SyncScreens([]layout.Screen{{ID: "DP-1", Frame: layout.Rect{Width: 1000, Height: 800}}})
	mgr.SetDesktop(0)
	mgr.WindowAdded(tiling.WindowInfo{ID: 1, AppID: "term"})
	mgr.WindowAdded(tiling.WindowInfo{ID: 2, AppID: "term"})
	t.Cleanup(mgr.Close)

	// Unix socket paths are length limited; keep the directory short.
	dir, err := os.MkdirTemp("", "tessel-ipc")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")

	srv, err := NewServer(ServerConfig{SocketPath: path, Controller: mgr, Reload: reload})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClientAt(path), mgr
}

func TestServerStatusAndLayouts(t *testing.T) {
	client, _ := startServer(t, nil)

	st, err := client.GetStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.DaemonRunning || len(st.Screens) != 1 || st.Screens[0].Layout != layout.KeyTall {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Windows != 2 {
		t.Fatalf("expected 2 windows, got %d", st.Windows)
	}

	data, err := client.ListLayouts()
	if err != nil {
		t.Fatalf("list layouts: %v", err)
	}
	if data.Active["DP-1"] != layout.KeyTall {
		t.Fatalf("expected tall active on DP-1, got %v", data.Active)
	}
	configured := 0
	for _, l := range data.Layouts {
		if l.Configured {
			configured++
		}
		if l.Key == layout.KeyBSP && l.Name != "Binary Space Partitioning" {
			t.Fatalf("expected bsp display name, got %q", l.Name)
		}
	}
	if configured != len(data.Cycle) {
		t.Fatalf("expected %d configured layouts, got %d", len(data.Cycle), configured)
	}
}

func TestServerLayoutCommands(t *testing.T) {
	client, mgr := startServer(t, nil)

	key, err := client.CycleLayout(1)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if key != layout.KeyWide {
		t.Fatalf("expected wide after one cycle, got %s", key)
	}
	if err := client.SelectLayout(layout.KeyBSP); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := mgr.Status().Screens[0].Layout; got != layout.KeyBSP {
		t.Fatalf("expected bsp active, got %s", got)
	}
	if err := client.SelectLayout(layout.KeyStage); err == nil {
		t.Fatalf("expected error selecting a layout outside the cycle")
	}
	if _, err := client.CycleLayout(0); err == nil {
		t.Fatalf("expected error for a zero step")
	}
}

func TestServerRunCommand(t *testing.T) {
	client, mgr := startServer(t, nil)

	if err := client.Run(tiling.CmdToggleTiling, ""); err != nil {
		t.Fatalf("run: %v", err)
	}
	if mgr.Options().TilingEnabled {
		t.Fatalf("expected tiling disabled")
	}
	if err := client.Run("launch-rocket", ""); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestServerPreview(t *testing.T) {
	client, _ := startServer(t, nil)

	res, err := client.PreviewLayout(layout.KeyWide, 2)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Frames) != 2 || res.Frames[0].Frame != (layout.Rect{Width: 1000, Height: 400}) {
		t.Fatalf("unexpected preview %+v", res)
	}
	if _, err := client.PreviewLayout("nope", 2); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestServerReload(t *testing.T) {
	calls := 0
	client, _ := startServer(t, func() error {
		calls++
		if calls > 1 {
			return errors.New("bad yaml")
		}
		return nil
	})
	if err := client.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := client.Reload(); err == nil || !strings.Contains(err.Error(), "bad yaml") {
		t.Fatalf("expected reload error, got %v", err)
	}
}

func TestServerRejectsUnknownRequests(t *testing.T) {
	client, _ := startServer(t, nil)

	conn, err := net.Dial("unix", client.socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"command":"LAUNCH"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusError || !strings.Contains(resp.Error, "LAUNCH") {
		t.Fatalf("expected error naming the command, got %+v", resp)
	}
}
