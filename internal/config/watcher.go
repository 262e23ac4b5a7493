package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"svcctl/pkg/logging"
)

// Watcher reports changes to a single configuration file. It watches the
// file's directory so that editors replacing the file by rename are seen.
type Watcher struct {
	mu sync.Mutex

	path             string
	debounceInterval time.Duration
	timer            *time.Timer
}

// NewWatcher creates a watcher for path. A zero debounceInterval uses
// DefaultDebounceInterval.
func NewWatcher(path string, debounceInterval time.Duration) *Watcher {
	if debounceInterval == 0 {
		debounceInterval = DefaultDebounceInterval
	}
	return &Watcher{
		path:             filepath.Clean(path),
		debounceInterval: debounceInterval,
	}
}

// Watch calls onChange once per burst of writes to the file, after the
// burst has been quiet for the debounce interval. It blocks until ctx is
// done.
func (w *Watcher) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		w.stopTimer()
		if err := watcher.Close(); err != nil {
			logging.Error("ConfigWatcher", err, "Error closing file watcher")
		}
	}()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	logging.Info("ConfigWatcher", "Watching %s for changes", w.path)

	for {
		select {
		case <-ctx.Done():
			logging.Info("ConfigWatcher", "Stopped watching %s", w.path)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("ConfigWatcher", err, "File watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, onChange func()) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	logging.Debug("ConfigWatcher", "Observed %s on %s", event.Op, event.Name)
	w.debounce(onChange)
}

// debounce restarts the quiet period on every event.
func (w *Watcher) debounce(onChange func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		w.timer = nil
		w.mu.Unlock()

		logging.Info("ConfigWatcher", "%s changed, reloading", w.path)
		onChange()
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
