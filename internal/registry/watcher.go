package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soyeahso/switchboard/internal/logging"
)

// watchDebounce coalesces bursts of filesystem events (editors tend to
// write, chmod and rename in quick succession) into a single reload.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads the registry when the backing config file changes
// externally, e.g. when an operator edits agents.json by hand. It watches
// the parent directory rather than the file itself so atomic
// rename-over-file saves keep being observed.
type Watcher struct {
	registry *Registry
	path     string
	log      *logging.Logger
	onReload func()
}

// NewWatcher creates a watcher for a file-backed registry.
func NewWatcher(registry *Registry, path string, log *logging.Logger) *Watcher {
	return &Watcher{
		registry: registry,
		path:     path,
		log:      log.Sub("watcher"),
	}
}

// OnReload registers a callback invoked after every successful reload.
// Must be set before Run.
func (w *Watcher) OnReload(fn func()) {
	w.onReload = fn
}

// Run blocks, reloading on relevant file events, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.log.Info().Str("path", w.path).Msg("watching configuration file")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.registry.Reload(); err != nil {
				w.log.Error().Err(err).Msg("reload failed, keeping previous configuration")
			} else if w.onReload != nil {
				w.onReload()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}
