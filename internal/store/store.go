package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/adrg/xdg"

	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

const schemaVersion = 1

// ErrCorrupt is returned by Open when the state file can't be used. The
// store is still usable and starts empty.
var ErrCorrupt = errors.New("layout state file is corrupt")

type desktopState struct {
	Active  string                    `json:"active,omitempty"`
	Layouts map[string]layout.Encoded `json:"layouts,omitempty"`
}

type screenState struct {
	Desktops map[string]*desktopState `json:"desktops"`
}

type fileState struct {
	Version int                     `json:"version"`
	Screens map[string]*screenState `json:"screens"`
}

// Store keeps layout parameters per screen and desktop in one JSON file.
// Every save rewrites the file.
type Store struct {
	mu    sync.Mutex
	path  string
	state fileState
}

var _ tiling.Persistence = (*Store)(nil)

// DefaultPath is tessel/layouts.json under the XDG state home.
func DefaultPath() (string, error) {
	if xdg.StateHome == "" {
		return "", errors.New("failed to resolve XDG state home")
	}
	return filepath.Join(xdg.StateHome, "tessel", "layouts.json"), nil
}

// Open reads path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: emptyState()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read layout state %s: %w", path, err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if st.Version != schemaVersion {
		return s, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, path, st.Version)
	}
	if st.Screens == nil {
		st.Screens = map[string]*screenState{}
	}
	dropNullEntries(&st)
	s.state = st
	return s, nil
}

// dropNullEntries removes screens and desktops written as JSON null.
func dropNullEntries(st *fileState) {
	for id, scr := range st.Screens {
		if scr == nil {
			delete(st.Screens, id)
			continue
		}
		for key, d := range scr.Desktops {
			if d == nil {
				delete(scr.Desktops, key)
			}
		}
	}
}

func emptyState() fileState {
	return fileState{Version: schemaVersion, Screens: map[string]*screenState{}}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) desktopLocked(screenID string, desktop int, create bool) *desktopState {
	scr := s.state.Screens[screenID]
	if scr == nil {
		if !create {
			return nil
		}
		scr = &screenState{Desktops: map[string]*desktopState{}}
		s.state.Screens[screenID] = scr
	}
	if scr.Desktops == nil {
		scr.Desktops = map[string]*desktopState{}
	}
	key := strconv.Itoa(desktop)
	d := scr.Desktops[key]
	if d == nil {
		if !create {
			return nil
		}
		d = &desktopState{}
		scr.Desktops[key] = d
	}
	if d.Layouts == nil && create {
		d.Layouts = map[string]layout.Encoded{}
	}
	return d
}

func (s *Store) LoadLayout(screenID string, desktop int, key string) (layout.Encoded, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.desktopLocked(screenID, desktop, false)
	if d == nil {
		return layout.Encoded{}, false, nil
	}
	enc, ok := d.Layouts[key]
	if ok && enc.Key != key {
		return layout.Encoded{}, false, fmt.Errorf("saved layout under %q has key %q", key, enc.Key)
	}
	return enc, ok, nil
}

func (s *Store) SaveLayout(screenID string, desktop int, enc layout.Encoded) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.desktopLocked(screenID, desktop, true)
	d.Layouts[enc.Key] = enc
	return s.flushLocked()
}

func (s *Store) LoadActive(screenID string, desktop int) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.desktopLocked(screenID, desktop, false)
	if d == nil || d.Active == "" {
		return "", false, nil
	}
	return d.Active, true, nil
}

func (s *Store) SaveActive(screenID string, desktop int, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.desktopLocked(screenID, desktop, true)
	if d.Active == key {
		return nil
	}
	d.Active = key
	return s.flushLocked()
}

// flushLocked writes through a temporary file so a crash never leaves a
// truncated state file behind.
func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode layout state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".layouts-*.json")
	if err != nil {
		return fmt.Errorf("failed to write layout state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write layout state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write layout state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace layout state: %w", err)
	}
	return nil
}
