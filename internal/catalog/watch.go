package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven import.
// kind is one of "imported", "removed".
type EventCallback func(kind string, path string)

const debounce = 200 * time.Millisecond

// Watch re-imports catalog files as they change until ctx is cancelled.
// Writes are debounced per file so that editors saving in several steps
// cause one import. Removed or renamed files have their threats deleted,
// followed by a full sync to pick up the new name.
func Watch(ctx context.Context, s *Syncer, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.dir.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	pending := map[string]struct{}{}
	var (
		flushTimer *time.Timer
		flushCh    <-chan time.Time
		syncTimer  *time.Timer
		syncCh     <-chan time.Time
	)
	arm := func(t **time.Timer, ch *<-chan time.Time) {
		if *t == nil {
			*t = time.NewTimer(debounce)
			*ch = (*t).C
			return
		}
		(*t).Reset(debounce)
	}
	defer func() {
		if flushTimer != nil {
			flushTimer.Stop()
		}
		if syncTimer != nil {
			syncTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for rel := range pending {
				delete(pending, rel)
				changed, err := s.ImportFile(ctx, rel)
				if err != nil {
					logger.Warn("watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				if changed {
					logger.Debug("watcher: imported", slog.String("path", rel))
					if cb != nil {
						cb("imported", rel)
					}
				}
			}

		case <-syncCh:
			res, err := s.Sync(ctx)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: reconciled", slog.Int("imported", res.Imported), slog.Int("removed", res.Removed))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						logger.Warn("watcher: add new dir failed", slog.String("path", abs), slog.String("error", addErr.Error()))
					}
					arm(&syncTimer, &syncCh)
					continue
				}
			}

			name := filepath.Base(abs)
			if strings.HasPrefix(name, ".") || !IsCatalogFile(name) {
				continue
			}
			rel, relErr := filepath.Rel(root, abs)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				arm(&flushTimer, &flushCh)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, rel)
				if err := s.RemoveFile(ctx, rel); err != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("removed", rel)
				}
				if ev.Op&fsnotify.Rename != 0 {
					arm(&syncTimer, &syncCh)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
