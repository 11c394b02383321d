package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 150 * time.Millisecond

// Watch calls onChange after the store's contents change, coalescing bursts
// of events. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return fmt.Errorf("watch store: onChange is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch store: %w", err)
	}
	defer watcher.Close()

	if err := s.ensureRoot(); err != nil {
		return err
	}
	if err := watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch store %s: %w", s.root, err)
	}
	s.watchFolders(watcher)

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isTempFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == s.root {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("store watch error", zap.Error(err))

		case <-debounce.C:
			// The root may have been removed and recreated by DeleteAll.
			if err := watcher.Add(s.root); err != nil {
				s.logger.Debug("re-watch store root failed", zap.Error(err))
			}
			s.watchFolders(watcher)
			onChange()
		}
	}
}

func (s *Store) watchFolders(watcher *fsnotify.Watcher) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := watcher.Add(filepath.Join(s.root, entry.Name())); err != nil {
			s.logger.Debug("watch recording folder failed", zap.String("folder_id", entry.Name()), zap.Error(err))
		}
	}
}
