package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the watcher waits after a write event
// before reloading, so editors that write in several steps trigger one
// reload instead of a storm.
const defaultDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and
// hands the new configuration to a callback. Only the callback decides
// which settings are safe to apply at runtime.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   slog.Default().With("component", "config.watcher"),
		debounce: defaultDebounce,
	}, nil
}

// Watch blocks until ctx is cancelled, invoking onReload with the
// freshly loaded configuration after each change. A change that fails
// to load or validate is logged and skipped; the previous configuration
// stays in effect.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Config)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer w.watcher.Close()

	// Watch the directory, not the file: editors and config mounts
	// often replace the file, which drops a direct watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := LoadConfigWithEnvOverrides(w.path)
			if err != nil {
				w.logger.Error("config reload failed, keeping previous configuration", "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			onReload(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}
