package correction

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"loom/internal/logging"
)

// DefaultDebounce is how long the artifacts must stay quiet after a change
// before a retry is requested.
const DefaultDebounce = 750 * time.Millisecond

// WatchArtifacts sends RetryCombine to out once a write or create on any of
// paths has settled. Parent directories are watched so editors that replace
// files by rename are seen too. It returns when ctx is done.
func WatchArtifacts(ctx context.Context, paths []string, out chan<- Command, logger *slog.Logger) error {
	return watchArtifacts(ctx, paths, out, logger, DefaultDebounce)
}

func watchArtifacts(ctx context.Context, paths []string, out chan<- Command, logger *slog.Logger, debounce time.Duration) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	logger.Debug("watching artifacts", logging.Int("files", len(targets)))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("artifact changed", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("artifact watch error", logging.Error(err))
		case <-timer.C:
			select {
			case out <- RetryCombine:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
