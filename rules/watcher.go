package rules

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the rule file watcher.
type WatcherConfig struct {
	// Path is the rules YAML file to watch.
	Path string

	// DebounceDelay is how long to wait for more changes before reloading.
	DebounceDelay time.Duration

	// Logger for reload events.
	Logger *slog.Logger
}

// Watcher reloads a registry from a rules file whenever it changes on
// disk. Reloads publish a new registry snapshot; in-flight checks are
// unaffected.
type Watcher struct {
	config   WatcherConfig
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher that keeps registry in sync with the file
// at config.Path.
func NewWatcher(config WatcherConfig, registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 250 * time.Millisecond
	}

	return &Watcher{
		config:   config,
		registry: registry,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Start begins watching until ctx is cancelled.
// Editors often replace files on save, so the parent directory is watched
// and events are filtered by name.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.logger.Info("Watching rules file", slog.String("path", w.config.Path))

	go w.loop(ctx)
	return nil
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.config.DebounceDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.config.Path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.pendingMu.Lock()
			if !w.pending {
				w.pending = true
				timer.Reset(w.config.DebounceDelay)
			}
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Rules watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			w.pendingMu.Lock()
			w.pending = false
			w.pendingMu.Unlock()
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	file, err := LoadFile(w.config.Path)
	if err != nil {
		w.logger.Warn("Rules reload failed, keeping previous rule set",
			slog.String("path", w.config.Path),
			slog.String("error", err.Error()))
		return
	}
	if err := w.registry.ReplaceAll(file.Rules); err != nil {
		w.logger.Warn("Rules reload rejected",
			slog.String("path", w.config.Path),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Info("Rules reloaded",
		slog.String("path", w.config.Path),
		slog.Int("rules", len(file.Rules)),
		slog.Uint64("version", w.registry.Version()))
}
