package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/tiling"
)

const (
	defaultPreviewWindows = 3
	maxBrowserWindows     = 12
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	diagramStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
)

// layoutItem implements list.Item for the layout sidebar.
type layoutItem struct {
	info   ipc.LayoutInfo
	active bool
}

func (i layoutItem) Title() string {
	prefix := "  "
	if i.active {
		prefix = "* "
	}
	return prefix + i.info.Key
}

func (i layoutItem) Description() string {
	if i.info.Configured {
		return i.info.Name
	}
	return i.info.Name + " (not in cycle)"
}

func (i layoutItem) FilterValue() string { return i.info.Key }

type clearStatusMsg struct{}

// model browses registered layouts and previews each one.
type model struct {
	src     Source
	list    list.Model
	windows int

	preview    *tiling.PreviewResult
	previewErr error
	status     string
	statusErr  bool

	width  int
	height int
}

func newModel(src Source) (model, error) {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Layouts"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	m := model{src: src, list: l, windows: defaultPreviewWindows}
	if err := m.loadLayouts(); err != nil {
		return m, err
	}
	m.refreshPreview()
	return m, nil
}

func (m *model) loadLayouts() error {
	data, err := m.src.ListLayouts()
	if err != nil {
		return fmt.Errorf("list layouts: %w", err)
	}
	active := map[string]bool{}
	for _, key := range data.Active {
		active[key] = true
	}
	prev := m.selectedKey()
	items := make([]list.Item, 0, len(data.Layouts))
	selected := 0
	for i, info := range data.Layouts {
		items = append(items, layoutItem{info: info, active: active[info.Key]})
		if info.Key == prev {
			selected = i
		}
	}
	m.list.SetItems(items)
	m.list.Select(selected)
	return nil
}

func (m model) selectedKey() string {
	item, ok := m.list.SelectedItem().(layoutItem)
	if !ok {
		return ""
	}
	return item.info.Key
}

func (m *model) refreshPreview() {
	key := m.selectedKey()
	if key == "" {
		m.preview, m.previewErr = nil, nil
		return
	}
	m.preview, m.previewErr = m.src.PreviewLayout(key, m.windows)
}

func (m *model) setStatus(text string, isErr bool) tea.Cmd {
	m.status = text
	m.statusErr = isErr
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.sidebarWidth(), max(m.height-2, 1))
		return m, nil

	case clearStatusMsg:
		m.status = ""
		m.statusErr = false
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "+", "=":
			if m.windows < maxBrowserWindows {
				m.windows++
				m.refreshPreview()
			}
			return m, nil
		case "-":
			if m.windows > 1 {
				m.windows--
				m.refreshPreview()
			}
			return m, nil
		case "r":
			if err := m.loadLayouts(); err != nil {
				return m, m.setStatus(err.Error(), true)
			}
			m.refreshPreview()
			return m, m.setStatus("layouts reloaded", false)
		case "enter":
			key := m.selectedKey()
			if key == "" {
				return m, nil
			}
			if err := m.src.SelectLayout(key); err != nil {
				return m, m.setStatus(fmt.Sprintf("error: %v", err), true)
			}
			_ = m.loadLayouts()
			return m, m.setStatus("selected: "+key, false)
		}
	}

	prev := m.list.Index()
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	if m.list.Index() != prev {
		m.refreshPreview()
	}
	return m, cmd
}

func (m model) sidebarWidth() int {
	return min(max(m.width*35/100, 20), 40)
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	sidebar := lipgloss.NewStyle().
		Width(m.sidebarWidth()).
		Height(max(m.height-2, 1)).
		Render(m.list.View())

	columns := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", m.renderPreview())
	return lipgloss.JoinVertical(lipgloss.Left, columns, m.renderStatus())
}

func (m model) renderPreview() string {
	if m.previewErr != nil {
		return errorStyle.Render(m.previewErr.Error())
	}
	if m.preview == nil {
		return dimStyle.Render("no layout selected")
	}
	title := titleStyle.Render(fmt.Sprintf("%s  [%d windows]", m.preview.Name, m.windows))
	screen := dimStyle.Render(m.preview.Screen.String())

	cols := max(m.width-m.sidebarWidth()-5, 8)
	rows := min(max(m.height-8, 4), tiling.DiagramRows(*m.preview, cols))
	diagram := diagramStyle.Render(strings.TrimRight(tiling.RenderASCII(*m.preview, cols, rows), "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, title, screen, "", diagram)
}

func (m model) renderStatus() string {
	left := ""
	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		left = style.Render(m.status)
	}
	right := dimStyle.Render("enter:select  +/-:windows  r:reload  q:quit")

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}
