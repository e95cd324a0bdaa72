package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the YAML overlay file in development, the way the
// teacher's ConfigWatcher hot-reloads its config directory — callbacks
// registered with OnChange fire with the newly merged Config whenever
// the file changes, debounced so a burst of writes from an editor's
// save only triggers one reload.
type Watcher struct {
	path      string
	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher starts watching path for changes and reloading the overlay
// on top of Load()'s env-derived Config. Only meaningful in development:
// callers gate construction on environment the same way the teacher
// gates ConfigWatcher on Environment == Development.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		current: initial,
		logger:  logger,
		fsWatcher: fsWatcher,
		stopCh:  make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// OnChange registers a callback invoked with the reloaded Config.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Config returns the most recently loaded Config.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop closes the underlying fsnotify watcher and ends watchLoop.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.fsWatcher.Close()
}

func (w *Watcher) watchLoop() {
	const debounceDelay = 500 * time.Millisecond
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, w.reload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Error("config watcher error", zap.Error(err))
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadWithFileOverlay(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Error("failed to reload config overlay", zap.String("path", w.path), zap.Error(err))
		}
		return
	}
	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("configuration overlay reloaded", zap.String("path", w.path))
	}
	for _, cb := range callbacks {
		cb(cfg)
	}
}
