package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ssogunle-tc/datahub/internal/loader"
)

// WatchFunc receives the outcome of each resolution in watch mode.
type WatchFunc func(result *Result, err error)

// Watch resolves the datasets under paths, then re-resolves them whenever a
// dataset file changes, until ctx is cancelled. Load and resolution errors
// are passed to fn and do not stop watching.
func (e *Engine) Watch(ctx context.Context, paths []string, fn WatchFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	set := watchSet{files: make(map[string]bool)}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			if err := watchDirRecursive(watcher, p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
			set.dirs = append(set.dirs, filepath.Clean(p))
			continue
		}
		set.files[filepath.Clean(p)] = true
		if err := watcher.Add(filepath.Dir(p)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	run := func() {
		datasets, err := loader.Load(paths...)
		if err != nil {
			fn(nil, err)
			return
		}
		result, err := e.Resolve(ctx, datasets)
		if ctx.Err() != nil {
			return
		}
		fn(result, err)
	}
	run()

	var debounce <-chan time.Time
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchDirRecursive(watcher, event.Name); err != nil {
						e.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !set.relevant(event) {
				continue
			}
			e.logger.Debug("dataset changed", "file", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(e.debounce)
			debounce = timer.C

		case <-debounce:
			debounce = nil
			run()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", "error", err)
		}
	}
}

// watchSet is what Watch listens to: whole directory trees and single files.
type watchSet struct {
	dirs  []string
	files map[string]bool
}

func (w watchSet) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	if !loader.IsDatasetFile(name) {
		return false
	}
	for _, dir := range w.dirs {
		if rel, err := filepath.Rel(dir, name); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
