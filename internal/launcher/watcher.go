package launcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watcherDebounce = 500 * time.Millisecond

// watchConfig warns when the config file changes during a run. The running
// fleet is never modified. It blocks until ctx is done.
func (l *Launcher) watchConfig(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	// Watch the directory: editors often replace the file by rename.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	l.logger.Debug("watching config for changes", "path", abs)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				l.logger.Warn("config changed on disk; restart the launcher to apply it", "path", abs)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("config watcher error", "error", err)
		}
	}
}
