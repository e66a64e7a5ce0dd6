// Package watch provides an optional filesystem-event-driven trigger for
// Indexer.Refresh, enabled by the config's watch_mode flag (spec §4.6
// supplement; disabled by default, never required by any spec operation).
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kandrwmrtn/cplusplus-mcp/internal/types"
)

// RefreshFunc is called once per debounced batch of filesystem events.
type RefreshFunc func(ctx context.Context) (int, error)

// Watcher debounces a burst of filesystem events into a single refresh
// call, so a build system rewriting dozens of files in quick succession
// triggers one reindex instead of dozens.
type Watcher struct {
	fsw     *fsnotify.Watcher
	debounce time.Duration
	refresh RefreshFunc
	log     *slog.Logger
}

// New creates a Watcher rooted at root, calling refresh after debounce has
// elapsed since the last filesystem event.
func New(root string, debounce time.Duration, refresh RefreshFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, debounce: debounce, refresh: refresh, log: logger}, nil
}

// Close stops watching and releases the underlying OS resources.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run blocks, debouncing filesystem events into refresh calls, until ctx
// is canceled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if n, err := w.refresh(ctx); err != nil {
				w.log.Warn("watch-triggered refresh failed", "error", err)
			} else if n > 0 {
				w.log.Info("watch-triggered refresh", "changed", n)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("filesystem watch error", "error", err)
		}
	}
}

// relevant filters out events on the directories themselves and on
// non-source-looking paths, so a refresh is not triggered by every
// directory mtime bump a filesystem generates incidentally.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return types.CppExtensions[strings.ToLower(filepath.Ext(event.Name))]
}
