package mesh

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces the burst of events an editor or a copy
// produces into one reload.
const DefaultReloadDebounce = 500 * time.Millisecond

// Watcher reloads a Registry when its dictionary file changes.
type Watcher struct {
	path     string
	registry *Registry
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// NewWatcher watches path and reloads registry after changes settle for
// debounce. A zero debounce uses DefaultReloadDebounce.
func NewWatcher(path string, registry *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: atomic saves replace the file and drop a direct watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		registry: registry,
		debounce: debounce,
		fsw:      fsw,
	}, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("dictionary_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Reloads returns how many reloads the watcher has triggered.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.registry.Reload(ctx); err != nil {
			// Keep serving the previous snapshot.
			slog.Warn("dictionary_reload_failed",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
			return
		}
		w.mu.Lock()
		w.reloads++
		w.mu.Unlock()
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}
