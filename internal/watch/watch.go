// Package watch re-triggers full pipeline runs when the capture directory
// changes. Each trigger is a complete fresh scan; no state carries across
// runs.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one full pipeline run.
type RunFunc func(ctx context.Context)

// Watcher debounces filesystem events on one directory into pipeline runs.
// Loggers rotate files hourly and write in bursts, so the debounce collapses
// a burst into a single run.
type Watcher struct {
	dir      string
	debounce time.Duration
	run      RunFunc
}

// New builds a Watcher over dir.
func New(dir string, debounce time.Duration, run RunFunc) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{dir: dir, debounce: debounce, run: run}
}

// Start performs an initial run, then blocks re-running on changes until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := fsw.Close(); closeErr != nil {
			slog.Error("[Watcher] Failed to close watcher", "error", closeErr)
		}
	}()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}

	slog.Info("[Watcher] Watching capture directory", "dir", w.dir, "debounce", w.debounce.String())
	w.run(ctx)

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			slog.Info("[Watcher] Directory changed, starting run", "dir", w.dir)
			w.run(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("[Watcher] Filesystem watch error", "error", err)

		case <-ctx.Done():
			slog.Info("[Watcher] Stopping (context cancelled)")
			return nil
		}
	}
}
