package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/octane"
)

// watchDebounce coalesces the burst of events an editor save produces.
var watchDebounce = 500 * time.Millisecond

// WatchCredentials re-reads the credentials whenever the config file at path
// changes and passes them to apply. The directory is watched so that files
// replaced by rename are seen too. It blocks until ctx is canceled.
func WatchCredentials(ctx context.Context, path string, apply func(octane.Credentials) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching config file for credential changes", zap.String("path", target))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce = time.After(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))

		case <-debounce:
			debounce = nil
			v, err := New(target)
			if err != nil {
				logger.Warn("could not reload config", zap.Error(err))
				continue
			}
			if err := apply(credentials(v)); err != nil {
				logger.Warn("ignoring reloaded credentials", zap.Error(err))
				continue
			}
			logger.Info("octane credentials reloaded")
		}
	}
}
