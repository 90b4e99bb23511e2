package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch removes created files from the recent list when they are deleted or
// renamed outside the application. It blocks until ctx is cancelled.
func (d *Dispatcher) Watch(ctx context.Context) error {
	if err := d.ensureFilesDir(); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(d.filesDir); err != nil {
		return fmt.Errorf("watching %s: %w", d.filesDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				if d.forget(ev.Name) {
					slog.Debug("created file went away", "path", ev.Name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}
