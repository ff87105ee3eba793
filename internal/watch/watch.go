// Package watch turns writes to the scraper's output file into run triggers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// File watches the directory holding path and signals on the returned
// channel once path has been created or written and then left alone for
// debounce. Bursts of writes collapse into one signal, and a signal that is
// not yet consumed absorbs later ones. The watcher stops when ctx is done.
//
// The directory is watched rather than the file so that scrapers which
// write a temp file and rename it into place are still seen.
func File(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger) (<-chan struct{}, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer w.Close()

		var settle <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					logger.Debug("input file changed", "path", ev.Name, "op", ev.Op.String())
					settle = time.After(debounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("input watcher error", "error", err)
			case <-settle:
				settle = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
