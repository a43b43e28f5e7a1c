package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kayz/kidsearch/internal/logger"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(*Config)
}

// NewWatcher watches the directory holding path, since editors often replace
// files by rename rather than writing in place.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{
		path:     path,
		watcher:  w,
		debounce: 500 * time.Millisecond,
		onChange: onChange,
	}, nil
}

// Start runs the event loop until ctx is done.
func (cw *Watcher) Start(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	go func() {
		defer timer.Stop()
		for {
			select {
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}
				if cw.shouldProcess(event) {
					timer.Reset(cw.debounce)
				}
			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				logger.Error("[Config] watcher error: %v", err)
			case <-timer.C:
				cw.reload()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (cw *Watcher) Stop() error {
	return cw.watcher.Close()
}

func (cw *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(cw.path)
}

func (cw *Watcher) reload() {
	cfg, err := LoadFromPath(cw.path)
	if err != nil {
		logger.Warn("[Config] reload of %s failed, keeping previous config: %v", cw.path, err)
		return
	}
	logger.Info("[Config] reloaded %s", cw.path)
	cw.onChange(cfg)
}
