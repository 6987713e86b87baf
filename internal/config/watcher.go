package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 200 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path is the main configuration file.
	Path string
	// Files are the files the last load read, includes first.
	Files    []string
	Debounce time.Duration
	// OnChange receives every configuration that loads and validates.
	OnChange func(*LoadResult)
	Logger   *slog.Logger
}

// Watcher reloads the configuration when the main file or one of its
// includes changes. Directories are watched rather than files so editors
// that replace the file on save are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*LoadResult)
	logger   *slog.Logger
	files    map[string]bool
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	w := &Watcher{
		path:     cfg.Path,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultWatchDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.setFiles(cfg.Files)
	return w
}

func (w *Watcher) setFiles(files []string) {
	w.files = map[string]bool{filepath.Clean(w.path): true}
	if canon, err := canonicalPath(w.path); err == nil {
		w.files[canon] = true
	}
	for _, f := range files {
		w.files[filepath.Clean(f)] = true
	}
}

func (w *Watcher) dirs() []string {
	seen := map[string]bool{}
	var out []string
	for f := range w.files {
		dir := filepath.Dir(f)
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	watched := map[string]bool{}
	watch := func() {
		for _, dir := range w.dirs() {
			if watched[dir] {
				continue
			}
			if err := fw.Add(dir); err != nil {
				w.logger.Warn("watch config directory failed", "dir", dir, "error", err)
				continue
			}
			watched[dir] = true
		}
	}
	watch()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			w.logger.Debug("config change detected", "file", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-timerC:
			timerC = nil
			res, err := LoadFromPath(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			w.setFiles(res.Files)
			watch()
			w.logger.Info("config reloaded", "path", w.path)
			if w.onChange != nil {
				w.onChange(res)
			}
		}
	}
}
