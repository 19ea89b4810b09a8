package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/convert/backends"
	"bindery/internal/coordinator"
	"bindery/internal/deps"
	"bindery/internal/library"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/notifications"
	"bindery/internal/preflight"
	"bindery/internal/reconcile"
	"bindery/internal/schedule"
)

// Maintenance task names registered with the scheduler.
const (
	taskReconcile       = "reconcile"
	taskArtifactCleanup = "artifact-cleanup"
	taskTempCleanup     = "temp-cleanup"
)

// tempFileMaxAge is how long abandoned conversion scratch directories are
// kept before temp-cleanup removes them. Live jobs always finish well within
// this window because conversions carry their own timeout.
const tempFileMaxAge = 24 * time.Hour

// Daemon wires the catalog, artifact store, conversion coordinator, and
// scheduler together and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	catalog     *catalog.Store
	artifacts   *artifacts.Store
	reader      *library.Reader
	registry    *convert.Registry
	coordinator *coordinator.Coordinator
	reconciler  *reconcile.Reconciler
	scheduler   *schedule.Registry
	notifier    notifications.Service
	collector   *metrics.Collector

	api     *apiServer
	watcher *libraryWatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	CatalogDBPath  string
	ArtifactDBPath string
	LockFilePath   string
	ReconcilePhase reconcile.Phase
	ActiveJobs     int
	LastReconcile  *reconcile.Summary
}

// New constructs a daemon with all subsystems wired. The caller owns the
// returned daemon and must Close it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	artifactStore, err := artifacts.Open(cfg)
	if err != nil {
		_ = catalogStore.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	reader, err := library.Open(cfg.Paths.CalibreLibraryDir)
	if err != nil {
		_ = artifactStore.Close()
		_ = catalogStore.Close()
		return nil, fmt.Errorf("open calibre library: %w", err)
	}

	registry := backends.NewRegistry(cfg)
	collector := metrics.NewCollector()
	notifier := notifications.NewService(cfg)

	coord := coordinator.New(cfg, catalogStore, artifactStore, reader, registry, notifier, collector, logger)
	reconciler := reconcile.New(cfg, catalogStore, artifactStore, notifier, collector, logger)
	scheduler := schedule.NewRegistry(logger)

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "daemon"),
		catalog:     catalogStore,
		artifacts:   artifactStore,
		reader:      reader,
		registry:    registry,
		coordinator: coord,
		reconciler:  reconciler,
		scheduler:   scheduler,
		notifier:    notifier,
		collector:   collector,
		lockPath:    filepath.Join(cfg.Paths.StateDir, "bindery.lock"),
	}
	d.lock = flock.New(d.lockPath)

	// A vanished source file means the catalog is behind the library; pull
	// the next reconcile forward instead of waiting out the interval.
	coord.SetSourceUnavailableHook(func() {
		if err := scheduler.RunNow(taskReconcile); err != nil {
			d.logger.Warn("failed to trigger reconcile", logging.Error(err))
		}
	})

	d.api, err = newAPIServer(cfg, d, logger)
	if err != nil {
		_ = d.closeStores()
		return nil, err
	}
	if cfg.Reconcile.WatchLibrary {
		d.watcher = newLibraryWatcher(cfg, scheduler, logger)
	}

	return d, nil
}

// Start acquires the daemon lock and launches the scheduler, watcher, and
// API server. The initial reconcile is scheduled immediately so a fresh
// daemon converges on the library without waiting out the first interval.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bindery daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.registerTasks(); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return err
	}
	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.start(d.ctx); err != nil {
			d.logger.Warn("library watcher unavailable", logging.Error(err))
			d.watcher = nil
		}
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.scheduler.Stop()
			if d.watcher != nil {
				d.watcher.stop()
			}
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx, d.cancel = nil, nil
			return err
		}
	}

	if err := d.scheduler.RunNow(taskReconcile); err != nil {
		d.logger.Warn("failed to schedule initial reconcile", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("bindery daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background work, waits for in-flight conversions, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.stop()
	}
	d.scheduler.Stop()
	d.coordinator.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bindery daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	return d.closeStores()
}

func (d *Daemon) closeStores() error {
	var errs []error
	if d.reader != nil {
		errs = append(errs, d.reader.Close())
	}
	if d.artifacts != nil {
		errs = append(errs, d.artifacts.Close())
	}
	if d.catalog != nil {
		errs = append(errs, d.catalog.Close())
	}
	return errors.Join(errs...)
}

func (d *Daemon) registerTasks() error {
	reconcileInterval := time.Duration(d.cfg.Reconcile.IntervalMinutes) * time.Minute
	cleanupInterval := time.Duration(d.cfg.Artifacts.CleanupIntervalMinutes) * time.Minute

	err := d.scheduler.Register(schedule.Task{
		Name:     taskReconcile,
		Interval: reconcileInterval,
		Run: func(ctx context.Context) error {
			_, err := d.reconciler.Run(ctx)
			if errors.Is(err, reconcile.ErrBusy) {
				return nil
			}
			return err
		},
	})
	if err != nil {
		return err
	}

	err = d.scheduler.Register(schedule.Task{
		Name:     taskArtifactCleanup,
		Interval: cleanupInterval,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-time.Duration(d.cfg.Artifacts.RetentionDays) * 24 * time.Hour)
			evicted, err := d.artifacts.EvictStale(ctx, cutoff)
			if err != nil {
				return err
			}
			if evicted > 0 {
				d.logger.Info("evicted stale artifacts", logging.Int("count", evicted))
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	return d.scheduler.Register(schedule.Task{
		Name:     taskTempCleanup,
		Interval: cleanupInterval,
		Run: func(ctx context.Context) error {
			return cleanTempDir(d.cfg.Paths.TempDir, time.Now().Add(-tempFileMaxAge))
		},
	})
}

// cleanTempDir removes conversion scratch directories older than cutoff.
// Only bindery-owned entries are touched; the temp dir may be shared.
func cleanTempDir(dir string, cutoff time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read temp dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "bindery-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TriggerReconcile starts a reconciliation in the background. It returns
// reconcile.ErrBusy when a run is already in progress.
func (d *Daemon) TriggerReconcile(ctx context.Context) error {
	return d.reconciler.Trigger(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Coordinator exposes the conversion coordinator.
func (d *Daemon) Coordinator() *coordinator.Coordinator {
	return d.coordinator
}

// Reconciler exposes the catalog reconciler.
func (d *Daemon) Reconciler() *reconcile.Reconciler {
	return d.reconciler
}

// Catalog exposes the cached catalog store.
func (d *Daemon) Catalog() *catalog.Store {
	return d.catalog
}

// Artifacts exposes the artifact store.
func (d *Daemon) Artifacts() *artifacts.Store {
	return d.artifacts
}

// Scheduler exposes the maintenance task registry.
func (d *Daemon) Scheduler() *schedule.Registry {
	return d.scheduler
}

// Backends exposes the conversion backend registry.
func (d *Daemon) Backends() *convert.Registry {
	return d.registry
}

// APIAddr reports the bound API listen address, empty when the API is off.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	last, _ := d.reconciler.Last()
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		CatalogDBPath:  d.cfg.CatalogDBPath(),
		ArtifactDBPath: d.cfg.ArtifactDBPath(),
		LockFilePath:   d.lockPath,
		ReconcilePhase: d.reconciler.Phase(),
		ActiveJobs:     len(d.coordinator.Jobs()),
		LastReconcile:  last,
	}
}

// Dependencies reports external binary availability.
func (d *Daemon) Dependencies(ctx context.Context) []deps.Status {
	return preflight.CheckSystemDeps(ctx, d.cfg)
}
