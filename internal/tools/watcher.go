package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher refreshes the registry shortly after a manifest changes on disk,
// so the next turn finds the work already done. Turns still refresh on
// their own; the watcher only moves the cost off the request path.
type Watcher struct {
	registry *Registry
	dir      string
	log      zerolog.Logger
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewWatcher(registry *Registry, dir string, log zerolog.Logger) *Watcher {
	return &Watcher{
		registry: registry,
		dir:      dir,
		log:      log,
		debounce: 500 * time.Millisecond,
	}
}

// Run watches until ctx is cancelled. The directory is created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.dir).Msg("watching tool manifests")

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isManifest(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.log.Debug().
					Str("file", filepath.Base(ev.Name)).
					Str("op", ev.Op.String()).
					Msg("manifest change detected")
				w.schedule(ctx)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("manifest watcher error")

		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		rep, err := w.registry.Refresh(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.log.Warn().Err(err).Msg("background tool refresh failed")
			return
		}
		if rep.Changed() {
			w.log.Debug().Strs("loaded", rep.Loaded).Strs("removed", rep.Removed).Msg("background tool refresh")
		}
	})
}
