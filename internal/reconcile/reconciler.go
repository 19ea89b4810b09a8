package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/library"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/notifications"
)

var (
	// ErrBusy means a reconciliation is already running; callers should
	// retry after it finishes.
	ErrBusy = errors.New("reconciliation already running")
	// ErrReconciliationFailed marks a run that could not complete, most
	// often because metadata.db was unreadable.
	ErrReconciliationFailed = errors.New("reconciliation failed")
)

// Phase describes where a run currently is.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseDiffing  Phase = "diffing"
	PhaseApplying Phase = "applying"
)

// Summary reports what one reconcile run did.
type Summary struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Added       int
	Changed     int
	Removed     int
	Purged      int
	Invalidated int64
	ActiveBooks int
}

// Reconciler mirrors the Calibre library into the cached catalog. Runs are
// single-flight: a second caller gets ErrBusy instead of a queued run.
type Reconciler struct {
	cfg       *config.Config
	catalog   *catalog.Store
	artifacts *artifacts.Store
	notifier  notifications.Service
	collector *metrics.Collector
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	phase   Phase
	last    *Summary
	lastErr error
}

// New constructs a reconciler.
func New(
	cfg *config.Config,
	catalogStore *catalog.Store,
	artifactStore *artifacts.Store,
	notifier notifications.Service,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Reconciler {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		cfg:       cfg,
		catalog:   catalogStore,
		artifacts: artifactStore,
		notifier:  notifier,
		collector: collector,
		logger:    logging.WithComponent(logger, "reconcile"),
		phase:     PhaseIdle,
	}
}

// Phase returns the current phase.
func (r *Reconciler) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Last returns the most recent summary and error, if any run has finished.
func (r *Reconciler) Last() (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil, r.lastErr
	}
	summary := *r.last
	return &summary, r.lastErr
}

// Run executes one reconciliation: scan the library, diff against the
// catalog, apply the delta. Returns ErrBusy when a run is in flight.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	if !r.claim() {
		return nil, ErrBusy
	}
	return r.finish(ctx)
}

// Trigger starts a reconciliation in the background. The busy check happens
// synchronously so callers can report it; the run's outcome is observable
// through Last.
func (r *Reconciler) Trigger(ctx context.Context) error {
	if !r.claim() {
		return ErrBusy
	}
	go func() {
		_, _ = r.finish(context.WithoutCancel(ctx))
	}()
	return nil
}

// claim takes the single-flight slot. False means a run already holds it.
func (r *Reconciler) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	r.phase = PhaseScanning
	return true
}

// finish executes the claimed run and records its outcome.
func (r *Reconciler) finish(ctx context.Context) (*Summary, error) {
	summary, err := r.run(ctx)

	r.mu.Lock()
	r.running = false
	r.phase = PhaseIdle
	r.last = summary
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		r.collector.RecordReconcile(metrics.OutcomeFailure)
		_ = r.notifier.NotifyError(context.WithoutCancel(ctx), err, "reconcile")
		return nil, err
	}
	r.collector.RecordReconcile(metrics.OutcomeSuccess)
	r.collector.SetCatalogSize(summary.ActiveBooks)
	_ = r.notifier.NotifyReconcileCompleted(context.WithoutCancel(ctx), summary.Added, summary.Changed, summary.Removed)
	return summary, nil
}

func (r *Reconciler) run(ctx context.Context) (*Summary, error) {
	summary := &Summary{StartedAt: time.Now()}

	// A fresh reader each run picks up a metadata.db swapped out from under
	// the daemon by a Calibre restore.
	reader, err := library.Open(r.cfg.Paths.CalibreLibraryDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}
	defer reader.Close()

	snapshot, err := reader.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}

	r.setPhase(PhaseDiffing)
	existing, err := r.catalog.Checksums(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}
	delta := ComputeDelta(snapshot, existing)

	r.setPhase(PhaseApplying)
	if err := r.apply(ctx, delta, summary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}

	active, _, err := r.catalog.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}
	summary.ActiveBooks = active
	summary.FinishedAt = time.Now()

	r.logger.Info("reconcile finished",
		logging.Int("added", summary.Added),
		logging.Int("changed", summary.Changed),
		logging.Int("removed", summary.Removed),
		logging.Int("purged", summary.Purged),
		logging.Int("active", summary.ActiveBooks),
	)
	return summary, nil
}

func (r *Reconciler) apply(ctx context.Context, delta Delta, summary *Summary) error {
	now := time.Now()

	for _, book := range delta.Added {
		if err := r.catalog.Upsert(ctx, toCatalogBook(book)); err != nil {
			return err
		}
		summary.Added++
	}

	for _, book := range delta.Changed {
		if err := r.catalog.Upsert(ctx, toCatalogBook(book)); err != nil {
			return err
		}
		invalidated, err := r.artifacts.Invalidate(ctx, book.ID)
		if err != nil {
			return err
		}
		summary.Invalidated += invalidated
		summary.Changed++
	}

	if err := r.catalog.MarkRemoved(ctx, delta.Removed, now); err != nil {
		return err
	}
	summary.Removed = len(delta.Removed)

	grace := time.Duration(r.cfg.Reconcile.TombstoneGraceMinutes) * time.Minute
	purged, err := r.catalog.PurgeRemoved(ctx, now.Add(-grace))
	if err != nil {
		return err
	}
	for _, id := range purged {
		if _, err := r.artifacts.RemoveForBook(ctx, id); err != nil {
			return err
		}
	}
	summary.Purged = len(purged)
	return nil
}

func (r *Reconciler) setPhase(phase Phase) {
	r.mu.Lock()
	r.phase = phase
	r.mu.Unlock()
}

func toCatalogBook(book library.Book) catalog.Book {
	return catalog.Book{
		ID:           book.ID,
		Title:        book.Title,
		SortTitle:    catalog.SortTitleFor(book.Title, book.Sort),
		Path:         book.Path,
		UUID:         book.UUID,
		Checksum:     book.Checksum,
		Formats:      book.FormatNames(),
		LastModified: book.LastModified,
	}
}
