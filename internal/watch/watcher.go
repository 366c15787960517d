// Package watch observes the JSON data files for edits made outside the
// running process (manual fixes, sync tools) and surfaces them as events.
//
// The repository re-reads the full snapshot on every operation, so no cache
// needs invalidating; the watcher exists purely to notify connected admin
// clients that the collection changed under them.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a debounced data-file change.
// name is the base name of the modified document (e.g. "posts.json").
type EventCallback func(name string)

// Run starts an fsnotify watcher on dataDir and reports writes to .json
// documents until ctx is cancelled. Bursts of writes to the same file are
// debounced so an atomic tmp-write-rename sequence yields one event.
func Run(ctx context.Context, dataDir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dataDir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dataDir))

	const debounce = 200 * time.Millisecond
	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for name := range pending {
				logger.Debug("watcher: data file changed", slog.String("file", name))
				if cb != nil {
					cb(name)
				}
				delete(pending, name)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if filepath.Ext(name) != ".json" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending[name] = struct{}{}
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
