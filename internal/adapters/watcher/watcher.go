// Package watcher triggers pipeline runs when source rasters change.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rasterExtensions are the source file types that trigger a run.
var rasterExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
	".vrt":  true,
	".img":  true,
}

// Handler is called once per settled raster file.
type Handler func(ctx context.Context, path string) error

// Watcher watches directories for new or updated source rasters.
// Deletes are ignored; a removed source simply stops producing runs.
// Events are debounced so a raster being copied in triggers exactly one
// run after the writes stop. Handler calls are serialized: a raster
// settling while a run is active waits for that run to finish.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	logger    *slog.Logger
	paths     []string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration
}

// New creates a new raster watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 2 * time.Second
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		logger:    logger,
		paths:     cfg.Paths,
		debounce:  cfg.Debounce,
		pending:   make(map[string]time.Time),
	}, nil
}

// Start starts watching the configured paths.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			w.logger.Warn("invalid watch path", "path", path, "error", err)
			continue
		}

		if err := w.fsWatcher.Add(absPath); err != nil {
			w.logger.Warn("failed to watch path", "path", absPath, "error", err)
			continue
		}

		w.logger.Info("watching directory", "path", absPath)
	}

	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// eventLoop processes fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFsEvent records a write or create on a raster file. The pending
// timestamp moves forward on every event, so the debounce window only
// expires once the file stops changing.
func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if !isRasterFile(event.Name) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	w.logger.Debug("raster event", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// debounceLoop fires the handler for settled files.
func (w *Watcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// processPending fires the handler for every file whose debounce window
// has expired. The handler runs on the debounce goroutine, so runs never
// overlap; files settling during a run stay pending until it finishes.
func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, last := range w.pending {
		if now.Sub(last) < w.debounce {
			continue
		}
		delete(w.pending, path)
		settled = append(settled, path)
	}
	w.mu.Unlock()

	sort.Strings(settled)
	for _, path := range settled {
		w.logger.Info("source raster settled", "path", path)
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("handler error", "path", path, "error", err)
		}
	}
}

// isRasterFile checks if the path is a supported source raster.
func isRasterFile(path string) bool {
	return rasterExtensions[strings.ToLower(filepath.Ext(path))]
}
