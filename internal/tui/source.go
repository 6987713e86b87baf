package tui

import (
	"errors"
	"slices"

	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

// ErrOffline is returned when an action needs the daemon.
var ErrOffline = errors.New("daemon not running")

// Source supplies the layout browser. *ipc.Client is the live source.
type Source interface {
	ListLayouts() (*ipc.LayoutsData, error)
	PreviewLayout(key string, windows int) (*tiling.PreviewResult, error)
	SelectLayout(key string) error
}

var _ Source = (*ipc.Client)(nil)

// OfflineSource previews layouts from the configuration alone.
type OfflineSource struct {
	Registry *layout.Registry
	Options  tiling.Options
	// Screen is the area previews are computed for.
	Screen layout.Rect
}

func (s *OfflineSource) ListLayouts() (*ipc.LayoutsData, error) {
	data := &ipc.LayoutsData{
		Cycle:  slices.Clone(s.Options.Layouts),
		Active: map[string]string{},
	}
	for _, key := range s.Registry.Keys() {
		info := ipc.LayoutInfo{Key: key, Name: key, Configured: slices.Contains(s.Options.Layouts, key)}
		if l, err := s.Registry.New(key); err == nil {
			info.Name = l.Name()
		}
		data.Layouts = append(data.Layouts, info)
	}
	return data, nil
}

func (s *OfflineSource) PreviewLayout(key string, windows int) (*tiling.PreviewResult, error) {
	res, err := tiling.Preview(s.Registry, tiling.PreviewRequest{
		Layout:   key,
		Windows:  windows,
		Screen:   tiling.ApplyPadding(s.Screen, s.Options.Padding),
		Settings: s.Options.Settings,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *OfflineSource) SelectLayout(string) error {
	return ErrOffline
}
