package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/schedule"
)

// libraryWatcher watches the Calibre library directory and pulls the next
// reconcile forward when metadata.db changes. Calibre writes the database in
// bursts (and some tools replace the file wholesale), so events are debounced
// before triggering.
type libraryWatcher struct {
	dir       string
	debounce  time.Duration
	scheduler *schedule.Registry
	logger    *slog.Logger

	watcher *fsnotify.Watcher
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newLibraryWatcher(cfg *config.Config, scheduler *schedule.Registry, logger *slog.Logger) *libraryWatcher {
	debounce := time.Duration(cfg.Reconcile.WatchDebounceSeconds) * time.Second
	if debounce <= 0 {
		debounce = time.Second
	}
	return &libraryWatcher{
		dir:       cfg.Paths.CalibreLibraryDir,
		debounce:  debounce,
		scheduler: scheduler,
		logger:    logging.WithComponent(logger, "library-watcher"),
		stopped:   make(chan struct{}),
	}
}

func (lw *libraryWatcher) start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: Calibre replaces metadata.db via
	// rename, which would orphan a file-level watch.
	if err := watcher.Add(lw.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	lw.watcher = watcher

	lw.wg.Add(1)
	go lw.loop(ctx)

	lw.logger.Info("watching library", logging.String("dir", lw.dir))
	return nil
}

func (lw *libraryWatcher) stop() {
	lw.once.Do(func() {
		close(lw.stopped)
	})
	if lw.watcher != nil {
		_ = lw.watcher.Close()
	}
	lw.wg.Wait()
}

func (lw *libraryWatcher) loop(ctx context.Context) {
	defer lw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-lw.stopped:
			return
		case event, ok := <-lw.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(lw.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(lw.debounce)
			}
		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			lw.logger.Warn("watch error", logging.Error(err))
		case <-fire:
			timer = nil
			fire = nil
			lw.logger.Info("library changed, triggering reconcile")
			if err := lw.scheduler.RunNow(taskReconcile); err != nil {
				lw.logger.Warn("failed to trigger reconcile", logging.Error(err))
			}
		}
	}
}

// relevantEvent keeps only writes that touch the Calibre database. Calibre
// uses SQLite journaling, so the journal and WAL siblings count too.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return name == "metadata.db" || strings.HasPrefix(name, "metadata.db-")
}
