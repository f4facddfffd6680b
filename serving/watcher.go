package serving

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"carprice/ml"
	"carprice/models"
)

const defaultSettle = 200 * time.Millisecond

// Watcher reloads the bundle file whenever it is replaced on disk, so a
// bundle written by the train_model command goes live without a restart.
type Watcher struct {
	path     string
	activate func(*ml.Bundle) bool
	onReload func()
	settle   time.Duration
	logger   *zap.Logger
}

// NewWatcher watches path and hands every bundle that decodes cleanly to
// activate. onReload may be nil.
func NewWatcher(path string, activate func(*ml.Bundle) bool, onReload func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		activate: activate,
		onReload: onReload,
		settle:   defaultSettle,
		logger:   logger,
	}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file so atomic renames are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching model bundle", zap.String("path", w.path))

	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(w.settle)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	bundle, err := ml.LoadBundle(w.path)
	if errors.Is(err, models.ErrModelNotTrained) {
		return
	}
	if err != nil {
		w.logger.Warn("reload bundle failed, keeping current model", zap.String("path", w.path), zap.Error(err))
		return
	}
	if !w.activate(bundle) {
		return
	}
	w.logger.Info("bundle reloaded from disk", zap.String("version", bundle.Version))
	if w.onReload != nil {
		w.onReload()
	}
}
