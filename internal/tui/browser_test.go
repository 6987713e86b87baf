package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

func offlineSource() *OfflineSource {
	return &OfflineSource{
		Registry: layout.NewRegistry(nil),
		Options:  tiling.DefaultOptions(),
		Screen:   layout.Rect{Width: 1920, Height: 1080},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("expected model, got %T", next)
	}
	return nm, cmd
}

func TestOfflineSourceListsConfiguredCycle(t *testing.T) {
	data, err := offlineSource().ListLayouts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(data.Layouts) != len(layout.BuiltinKeys()) {
		t.Fatalf("expected %d layouts, got %d", len(layout.BuiltinKeys()), len(data.Layouts))
	}
	configured := map[string]bool{}
	for _, info := range data.Layouts {
		configured[info.Key] = info.Configured
	}
	if !configured[layout.KeyTall] || configured[layout.KeyStage] {
		t.Fatalf("expected only the default cycle configured, got %v", configured)
	}
	if err := offlineSource().SelectLayout(layout.KeyTall); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestBrowserPreviewsSelection(t *testing.T) {
	m, err := newModel(offlineSource())
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if m.preview == nil || m.preview.Layout != layout.KeyTall {
		t.Fatalf("expected tall preview, got %+v", m.preview)
	}
	if len(m.preview.Frames) != defaultPreviewWindows {
		t.Fatalf("expected %d frames, got %d", defaultPreviewWindows, len(m.preview.Frames))
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if got := m.selectedKey(); got != layout.KeyTallRight {
		t.Fatalf("expected %s selected, got %s", layout.KeyTallRight, got)
	}
	if m.preview == nil || m.preview.Layout != layout.KeyTallRight {
		t.Fatalf("expected preview to follow selection, got %+v", m.preview)
	}

	m, _ = update(t, m, runes("+"))
	if m.windows != defaultPreviewWindows+1 || len(m.preview.Frames) != defaultPreviewWindows+1 {
		t.Fatalf("expected %d windows, got %d (%d frames)", defaultPreviewWindows+1, m.windows, len(m.preview.Frames))
	}

	view := m.View()
	if !strings.Contains(view, m.preview.Name) {
		t.Fatalf("expected view to name the layout, got:\n%s", view)
	}
}

func TestBrowserWindowCountBounds(t *testing.T) {
	m, err := newModel(offlineSource())
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	for i := 0; i < 2*maxBrowserWindows; i++ {
		m, _ = update(t, m, runes("+"))
	}
	if m.windows != maxBrowserWindows {
		t.Fatalf("expected %d windows, got %d", maxBrowserWindows, m.windows)
	}
	for i := 0; i < 2*maxBrowserWindows; i++ {
		m, _ = update(t, m, runes("-"))
	}
	if m.windows != 1 {
		t.Fatalf("expected 1 window, got %d", m.windows)
	}
}

type fakeSource struct {
	*OfflineSource
	selected  []string
	selectErr error
}

func (f *fakeSource) SelectLayout(key string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.selected = append(f.selected, key)
	return nil
}

func TestBrowserSelect(t *testing.T) {
	cases := []struct {
		name      string
		selectErr error
		wantErr   bool
	}{
		{"ok", nil, false},
		{"daemon error", errors.New("boom"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{OfflineSource: offlineSource(), selectErr: tc.selectErr}
			m, err := newModel(src)
			if err != nil {
				t.Fatalf("new model: %v", err)
			}
			m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			if cmd == nil {
				t.Fatalf("expected a status timer")
			}
			if m.statusErr != tc.wantErr {
				t.Fatalf("expected status error %v, got %v (%q)", tc.wantErr, m.statusErr, m.status)
			}
			if !tc.wantErr && (len(src.selected) != 1 || src.selected[0] != layout.KeyTall) {
				t.Fatalf("expected tall selected, got %v", src.selected)
			}
			m, _ = update(t, m, clearStatusMsg{})
			if m.status != "" {
				t.Fatalf("expected status cleared, got %q", m.status)
			}
		})
	}
}

func TestBrowserQuits(t *testing.T) {
	m, err := newModel(offlineSource())
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg")
	}
}

type failingSource struct{}

func (failingSource) ListLayouts() (*ipc.LayoutsData, error) {
	return nil, errors.New("socket gone")
}

func (failingSource) PreviewLayout(string, int) (*tiling.PreviewResult, error) {
	return nil, errors.New("socket gone")
}

func (failingSource) SelectLayout(string) error {
	return errors.New("socket gone")
}

func TestBrowserListError(t *testing.T) {
	if _, err := newModel(failingSource{}); err == nil {
		t.Fatalf("expected list error")
	}
}
