package offline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// ManifestWatcher reloads the manifest when its file changes and rolls the
// manager forward to the new generation.
type ManifestWatcher struct {
	*worker.BaseWorker
	manager  *Manager
	path     string
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
	wg    sync.WaitGroup
}

// NewManifestWatcher creates a watcher for the manifest at path.
func NewManifestWatcher(manager *Manager, path string, logger *slog.Logger) *ManifestWatcher {
	return &ManifestWatcher{
		BaseWorker: worker.NewBaseWorker("manifest-watcher"),
		manager:    manager,
		path:       filepath.Clean(path),
		logger:     logger,
		debounce:   defaultDebounce,
	}
}

// SetDebounce changes how long the watcher waits for writes to settle.
func (w *ManifestWatcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

func (w *ManifestWatcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("manifest watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors and deploy tools replace the file.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *ManifestWatcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *ManifestWatcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"manifest":          w.path,
		}
	})
}

func (w *ManifestWatcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("manifest watcher panic: %v", recovered)
			if w.logger != nil {
				if w.logger.Enabled(ctx, slog.LevelDebug) {
					w.logger.Error("manifest watcher panic", "error", err, "stack", string(debug.Stack()))
				} else {
					w.logger.Error("manifest watcher panic", "error", err)
				}
			}
		}
	}()
	defer w.watcher.Close()
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(ctx)
			}

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			if w.logger != nil {
				w.logger.Error("fsnotify error", "error", wErr)
			}
		}
	}
}

// schedule coalesces bursts of events into one reload.
func (w *ManifestWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.reload(ctx)
	})
}

func (w *ManifestWatcher) stopTimer() {
	w.mu.Lock()
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *ManifestWatcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	manifest, err := LoadManifest(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("manifest reload failed", "path", w.path, "error", err)
		}
		return
	}
	if w.logger != nil {
		w.logger.Debug("manifest changed", "generation", manifest.Generation())
	}
	if err := w.manager.Update(ctx, manifest); err != nil && w.logger != nil {
		w.logger.Warn("cache update failed", "generation", manifest.Generation(), "error", err)
	}
}
