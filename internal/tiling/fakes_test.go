package tiling

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/tessel/internal/layout"
)

// fakeApplier records every batch and reports each window at its final frame.
type fakeApplier struct {
	mu     sync.Mutex
	calls  int
	frames map[layout.WindowID]layout.Rect
	last   []layout.FrameAssignment
	done   chan struct{}
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{frames: map[layout.WindowID]layout.Rect{}, done: make(chan struct{}, 64)}
}

func (a *fakeApplier) Apply(ctx context.Context, assignments []layout.FrameAssignment, s layout.Settings) (map[layout.WindowID]layout.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[layout.WindowID]layout.Rect, len(assignments))
	a.mu.Lock()
	a.calls++
	for _, as := range assignments {
		f := as.FinalFrame(s)
		a.frames[as.Window.ID] = f
		out[as.Window.ID] = f
	}
	a.last = assignments
	a.mu.Unlock()
	select {
	case a.done <- struct{}{}:
	default:
	}
	return out, nil
}

func (a *fakeApplier) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeApplier) frame(id layout.WindowID) (layout.Rect, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.frames[id]
	return f, ok
}

func (a *fakeApplier) lastIDs() map[layout.WindowID]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := map[layout.WindowID]bool{}
	for _, as := range a.last {
		ids[as.Window.ID] = true
	}
	return ids
}

func (a *fakeApplier) wait(t *testing.T) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frames to be applied")
	}
}

type fakeRecorder struct {
	mu        sync.Mutex
	skips     chan string
	canceled  int
	completed int
	commands  []string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{skips: make(chan string, 64)}
}

func (r *fakeRecorder) ReflowCompleted(string, string, int, time.Duration) {
	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
}

func (r *fakeRecorder) ReflowCanceled(string) {
	r.mu.Lock()
	r.canceled++
	r.mu.Unlock()
}

func (r *fakeRecorder) ReflowSkipped(_, reason string) {
	select {
	case r.skips <- reason:
	default:
	}
}

func (r *fakeRecorder) CommandExecuted(command string, _ error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	r.mu.Unlock()
}

func (r *fakeRecorder) canceledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

func (r *fakeRecorder) waitSkip(t *testing.T) string {
	t.Helper()
	select {
	case reason := <-r.skips:
		return reason
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a skipped reflow")
		return ""
	}
}

// memoryStore is an in-memory Persistence.
type memoryStore struct {
	mu      sync.Mutex
	layouts map[string]layout.Encoded
	active  map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{layouts: map[string]layout.Encoded{}, active: map[string]string{}}
}

func storeKey(screenID string, desktop int, key string) string {
	return fmt.Sprintf("%s/%d/%s", screenID, desktop, key)
}

func (s *memoryStore) LoadLayout(screenID string, desktop int, key string) (layout.Encoded, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, ok := s.layouts[storeKey(screenID, desktop, key)]
	return enc, ok, nil
}

func (s *memoryStore) SaveLayout(screenID string, desktop int, enc layout.Encoded) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[storeKey(screenID, desktop, enc.Key)] = enc
	return nil
}

func (s *memoryStore) LoadActive(screenID string, desktop int) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.active[storeKey(screenID, desktop, "")]
	return key, ok, nil
}

func (s *memoryStore) SaveActive(screenID string, desktop int, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[storeKey(screenID, desktop, "")] = key
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Layouts = []string{layout.KeyTall, layout.KeyWide, layout.KeyBSP}
	opts.Debounce = time.Millisecond
	opts.SpaceSwitchDelay = 0
	return opts
}
