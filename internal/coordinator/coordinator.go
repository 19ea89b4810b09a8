package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/convert/thumbnail"
	"bindery/internal/library"
	"bindery/internal/logging"
	"bindery/internal/metrics"
	"bindery/internal/notifications"
)

// Coordinator serves artifact requests: cache hits straight from the store,
// misses through a bounded conversion pipeline. Concurrent requests for the
// same artifact fan in onto a single job.
type Coordinator struct {
	cfg       *config.Config
	catalog   *catalog.Store
	artifacts *artifacts.Store
	reader    *library.Reader
	registry  *convert.Registry
	notifier  notifications.Service
	collector *metrics.Collector
	logger    *slog.Logger
	sem       *semaphore.Weighted

	// onSourceUnavailable fires when a conversion finds the library out of
	// step with the catalog, so the daemon can schedule a reconcile.
	onSourceUnavailable func()

	mu       sync.Mutex
	inflight map[string]*job
	wg       sync.WaitGroup
}

// New constructs a coordinator. The semaphore bound comes from
// conversion.max_concurrent.
func New(
	cfg *config.Config,
	catalogStore *catalog.Store,
	artifactStore *artifacts.Store,
	reader *library.Reader,
	registry *convert.Registry,
	notifier notifications.Service,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Coordinator {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	limit := cfg.Conversion.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	return &Coordinator{
		cfg:       cfg,
		catalog:   catalogStore,
		artifacts: artifactStore,
		reader:    reader,
		registry:  registry,
		notifier:  notifier,
		collector: collector,
		logger:    logging.WithComponent(logger, "coordinator"),
		sem:       semaphore.NewWeighted(int64(limit)),
		inflight:  make(map[string]*job),
	}
}

// SetSourceUnavailableHook installs the reconcile trigger. Must be called
// before the coordinator starts serving requests.
func (c *Coordinator) SetSourceUnavailableHook(hook func()) {
	c.onSourceUnavailable = hook
}

// RequestArtifact returns a ready artifact for the book, converting on demand
// when the cache misses or the cached copy is stale. Cancelling ctx abandons
// the wait but never the underlying job; other waiters may still need it.
func (c *Coordinator) RequestArtifact(ctx context.Context, bookID int64, format string, params map[string]string) (*artifacts.Entry, error) {
	book, err := c.catalog.Get(ctx, bookID)
	if err != nil {
		c.collector.RecordRequest(metrics.ResultError)
		return nil, err
	}
	if book == nil || book.Removed() {
		c.collector.RecordRequest(metrics.ResultError)
		return nil, convert.Wrap(convert.ErrNotFound, "", "request", fmt.Sprintf("book %d", bookID), nil)
	}

	key := artifacts.NewKey(bookID, format, params)
	if !c.derivable(book, key.Format) {
		c.collector.RecordRequest(metrics.ResultError)
		return nil, convert.Wrap(
			convert.ErrUnsupportedFormat, "", "request",
			fmt.Sprintf("%s not derivable from [%s]", key.Format, strings.Join(book.Formats, " ")),
			nil,
		)
	}

	entry, err := c.artifacts.Get(ctx, key)
	if err != nil {
		c.collector.RecordRequest(metrics.ResultError)
		return nil, err
	}
	if entry.Ready() {
		if entry.SourceChecksum == book.Checksum {
			c.collector.RecordRequest(metrics.ResultHit)
			return entry, nil
		}
		// The book changed under this artifact; rebuild it.
		if err := c.artifacts.MarkStale(ctx, key); err != nil {
			c.logger.Warn("mark stale failed", logging.Error(err), logging.String(logging.FieldBookID, key.String()))
		}
	}

	j, leader := c.join(key, book, params)
	if leader {
		c.wg.Add(1)
		go c.run(j)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		c.leave(j)
		return nil, ctx.Err()
	}

	if j.err != nil {
		c.collector.RecordRequest(metrics.ResultError)
		return nil, j.err
	}
	c.collector.RecordRequest(metrics.ResultConverted)
	return j.entry, nil
}

// Jobs snapshots the in-flight jobs ordered by creation time.
func (c *Coordinator) Jobs() []JobView {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]JobView, 0, len(c.inflight))
	for _, j := range c.inflight {
		views = append(views, JobView{
			ID:        j.id,
			BookID:    j.bookID,
			Title:     j.title,
			Target:    j.key.Format,
			Variant:   j.key.Variant,
			State:     j.state,
			Backend:   j.backend,
			Waiters:   j.waiters,
			CreatedAt: j.created,
			StartedAt: j.started,
		})
	}
	sort.Slice(views, func(i, k int) bool {
		if !views[i].CreatedAt.Equal(views[k].CreatedAt) {
			return views[i].CreatedAt.Before(views[k].CreatedAt)
		}
		return views[i].ID < views[k].ID
	})
	return views
}

// Wait blocks until every in-flight job has finished. Used during shutdown.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) join(key artifacts.Key, book *catalog.Book, params map[string]string) (*job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inflight[key.String()]; ok {
		existing.waiters++
		return existing, false
	}

	j := &job{
		id:       uuid.NewString(),
		key:      key,
		bookID:   book.ID,
		title:    book.Title,
		params:   params,
		checksum: book.Checksum,
		created:  time.Now(),
		state:    JobStatePending,
		waiters:  1,
		done:     make(chan struct{}),
	}
	c.inflight[key.String()] = j
	return j, true
}

func (c *Coordinator) leave(j *job) {
	c.mu.Lock()
	if j.waiters > 0 {
		j.waiters--
	}
	c.mu.Unlock()
}

func (c *Coordinator) run(j *job) {
	defer c.wg.Done()

	ctx := context.Background()
	cancel := func() {}
	if timeout := time.Duration(c.cfg.Conversion.TimeoutSeconds) * time.Second; timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	c.collector.JobStarted()
	defer c.collector.JobFinished()

	c.logger.Info("conversion job started",
		logging.String(logging.FieldJobID, j.id),
		logging.Int64(logging.FieldBookID, j.bookID),
		logging.String(logging.FieldFormat, j.key.Format),
	)

	entry, err := c.convert(ctx, j)

	c.mu.Lock()
	j.entry = entry
	j.err = err
	if err != nil {
		j.state = JobStateFailed
	} else {
		j.state = JobStateSucceeded
	}
	delete(c.inflight, j.key.String())
	c.mu.Unlock()
	close(j.done)

	if err != nil {
		c.logger.Error("conversion job failed",
			logging.String(logging.FieldJobID, j.id),
			logging.Int64(logging.FieldBookID, j.bookID),
			logging.String(logging.FieldFormat, j.key.Format),
			logging.Error(err),
		)
		if errors.Is(err, convert.ErrSourceUnavailable) && c.onSourceUnavailable != nil {
			go c.onSourceUnavailable()
		}
		_ = c.notifier.NotifyConversionFailed(context.Background(), j.title, j.key.Format, err)
		return
	}

	c.logger.Info("conversion job finished",
		logging.String(logging.FieldJobID, j.id),
		logging.Int64(logging.FieldBookID, j.bookID),
		logging.String(logging.FieldFormat, j.key.Format),
		logging.String(logging.FieldBackend, j.backend),
	)
}

func (c *Coordinator) convert(ctx context.Context, j *job) (*artifacts.Entry, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, convert.Wrap(convert.ErrConversionFailed, "", "queue", "timed out waiting for a conversion slot", err)
	}
	defer c.sem.Release(1)

	c.setState(j, JobStateRunning)

	backend, sourcePath, sourceFormat, err := c.resolveSource(ctx, j)
	if err != nil {
		if !errors.Is(err, convert.ErrUnsupportedFormat) {
			c.recordFailure(ctx, j)
		}
		return nil, err
	}
	c.setBackend(j, backend.Name())

	staging, err := os.MkdirTemp(c.cfg.Paths.TempDir, "bindery-job-")
	if err != nil {
		return nil, convert.Wrap(convert.ErrConversionFailed, backend.Name(), "stage", "create staging dir", err)
	}
	defer os.RemoveAll(staging)

	started := time.Now()
	outputPath, err := backend.Convert(ctx, convert.Request{
		BookID:       j.bookID,
		SourcePath:   sourcePath,
		SourceFormat: sourceFormat,
		TargetFormat: j.key.Format,
		Params:       j.params,
		OutputDir:    staging,
	})
	duration := time.Since(started)
	if err != nil {
		c.collector.RecordConversion(backend.Name(), metrics.OutcomeFailure, duration)
		c.recordFailure(ctx, j)
		return nil, err
	}
	c.collector.RecordConversion(backend.Name(), metrics.OutcomeSuccess, duration)

	entry, err := c.artifacts.Publish(ctx, j.key, outputPath, j.checksum)
	if err != nil {
		return nil, convert.Wrap(convert.ErrConversionFailed, backend.Name(), "publish", "", err)
	}
	return entry, nil
}

// derivable reports whether any registered pair can produce the target from
// the book's cataloged formats or its cover. Checked before a job exists, so
// an unsupported request never occupies a conversion slot.
func (c *Coordinator) derivable(book *catalog.Book, target string) bool {
	if c.registry.Supports(thumbnail.SourceFormat, target) {
		return true
	}
	for _, format := range book.Formats {
		if c.registry.Supports(format, target) {
			return true
		}
	}
	return false
}

// resolveSource picks a backend and a source file for the job's target
// format. Cover-derived artifacts resolve against cover.jpg; everything else
// walks the book's stored formats in registry priority order.
func (c *Coordinator) resolveSource(ctx context.Context, j *job) (convert.Backend, string, string, error) {
	book, err := c.reader.Lookup(ctx, j.bookID)
	if err != nil {
		return nil, "", "", convert.Wrap(convert.ErrSourceUnavailable, "", "lookup", fmt.Sprintf("book %d", j.bookID), err)
	}
	if book == nil {
		return nil, "", "", convert.Wrap(convert.ErrSourceUnavailable, "", "lookup", fmt.Sprintf("book %d missing from library", j.bookID), nil)
	}

	if c.registry.Supports(thumbnail.SourceFormat, j.key.Format) {
		backend, resolveErr := c.registry.Resolve(ctx, thumbnail.SourceFormat, j.key.Format)
		if resolveErr == nil {
			path, ok := c.reader.CoverPath(*book)
			if !ok {
				return nil, "", "", convert.Wrap(convert.ErrSourceUnavailable, backend.Name(), "cover", "cover.jpg missing", nil)
			}
			return backend, path, thumbnail.SourceFormat, nil
		}
	}

	declared := false
	for _, format := range book.FormatNames() {
		if !c.registry.Supports(format, j.key.Format) {
			continue
		}
		declared = true
		backend, resolveErr := c.registry.Resolve(ctx, format, j.key.Format)
		if resolveErr != nil {
			continue
		}
		path, ok := c.reader.SourcePath(*book, format)
		if !ok {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, "", "", convert.Wrap(convert.ErrSourceUnavailable, backend.Name(), "source", path, statErr)
		}
		return backend, path, format, nil
	}

	if declared {
		return nil, "", "", convert.Wrap(convert.ErrUnsupportedFormat, "", "resolve", "no available backend for "+j.key.Format, nil)
	}
	return nil, "", "", convert.Wrap(
		convert.ErrUnsupportedFormat, "", "resolve",
		fmt.Sprintf("%s not derivable from [%s]", j.key.Format, strings.Join(book.FormatNames(), " ")),
		nil,
	)
}

// recordFailure keeps a failed entry in the index for diagnostics, preserving
// any previously stored file so eviction can still clean it up.
func (c *Coordinator) recordFailure(ctx context.Context, j *job) {
	entry := artifacts.Entry{Key: j.key, SourceChecksum: j.checksum, Status: artifacts.StatusFailed}
	if existing, err := c.artifacts.Get(ctx, j.key); err == nil && existing != nil {
		entry.Path = existing.Path
		entry.Size = existing.Size
		entry.CreatedAt = existing.CreatedAt
	}
	if err := c.artifacts.Put(ctx, entry); err != nil {
		c.logger.Warn("record failed artifact", logging.Error(err))
	}
}

func (c *Coordinator) setState(j *job, state JobState) {
	c.mu.Lock()
	j.state = state
	if state == JobStateRunning && j.started.IsZero() {
		j.started = time.Now()
	}
	c.mu.Unlock()
}

func (c *Coordinator) setBackend(j *job, backend string) {
	c.mu.Lock()
	j.backend = backend
	c.mu.Unlock()
}
