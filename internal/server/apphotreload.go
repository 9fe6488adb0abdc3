package server

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/rtmpd/fmsgo/internal/app"
)

// AppsWatcher hot-reloads application enable/disable state from a directory
// of fragment files. Each file holds "name = state" lines (state is enabled
// or disabled, "#" starts a comment); a file is re-read in full whenever
// fsnotify reports it changed, and every name it mentions is applied to the
// registry.
type AppsWatcher struct {
	watcher  *fsnotify.Watcher
	registry *app.Registry
	log      *slog.Logger
	done     chan struct{}
}

// WatchAppsDir starts watching dir for app-toggle fragment files and applies
// their contents once immediately before returning.
func WatchAppsDir(dir string, registry *app.Registry, log *slog.Logger) (*AppsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	aw := &AppsWatcher{watcher: w, registry: registry, log: log.With("component", "apps_watcher"), done: make(chan struct{})}
	aw.loadDir(dir)
	go aw.run()
	return aw, nil
}

func (aw *AppsWatcher) run() {
	for {
		select {
		case ev, ok := <-aw.watcher.Events:
			if !ok {
				close(aw.done)
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			aw.loadFile(ev.Name)
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				close(aw.done)
				return
			}
			aw.log.Warn("apps-dir watch error", "error", err)
		}
	}
}

func (aw *AppsWatcher) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		aw.log.Warn("failed to list apps-dir", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		aw.loadFile(filepath.Join(dir, e.Name()))
	}
}

func (aw *AppsWatcher) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		aw.log.Warn("failed to open apps-dir fragment", "path", path, "error", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, state, ok := strings.Cut(line, "=")
		if !ok {
			aw.log.Warn("ignoring malformed apps-dir line", "path", path, "line", line)
			continue
		}
		name = strings.TrimSpace(name)
		state = strings.TrimSpace(state)
		var enabled bool
		switch state {
		case "enabled":
			enabled = true
		case "disabled":
			enabled = false
		default:
			aw.log.Warn("ignoring apps-dir line with unknown state", "path", path, "line", line)
			continue
		}
		if aw.registry.SetEnabled(name, enabled) {
			aw.log.Info("application toggled via apps-dir", "app", name, "enabled", enabled)
		} else {
			aw.log.Warn("apps-dir references unknown application", "app", name)
		}
	}
	if err := scanner.Err(); err != nil {
		aw.log.Warn("error scanning apps-dir fragment", "path", path, "error", err)
	}
}

// Close stops the watcher.
func (aw *AppsWatcher) Close() error {
	return aw.watcher.Close()
}
