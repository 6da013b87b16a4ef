package seed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the registry's backing file and reloads it when the
// file changes, until ctx is cancelled. Events are debounced so a
// save-via-rename (one Create plus one or more Writes) reloads once.
// cb (if non-nil) runs after each successful reload.
func Watch(ctx context.Context, r *Registry, logger *slog.Logger, cb func()) error {
	path := r.Path()
	if path == "" {
		return fmt.Errorf("seed: registry has no backing file to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors and our own Save
	// replace the file by rename, which drops a file-level watch.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("seed watcher: started", slog.String("file", path))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("seed watcher: stopped")
			return nil

		case <-reloadCh:
			if err := r.Reload(); err != nil {
				logger.Warn("seed watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("seed watcher: reloaded", slog.Int("version", r.Version()))
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			scheduleReload()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
