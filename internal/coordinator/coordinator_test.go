package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/coordinator"
	"bindery/internal/library"
	"bindery/internal/testsupport"
)

type stubBackend struct {
	name     string
	pairs    []convert.Pair
	converts atomic.Int32
	block    chan struct{}
	fail     error
}

func (s *stubBackend) Name() string                { return s.name }
func (s *stubBackend) Pairs() []convert.Pair       { return s.pairs }
func (s *stubBackend) Probe(context.Context) error { return nil }

func (s *stubBackend) Convert(ctx context.Context, req convert.Request) (string, error) {
	s.converts.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.fail != nil {
		return "", s.fail
	}
	output := filepath.Join(req.OutputDir, fmt.Sprintf("book.%s", req.TargetFormat))
	if err := os.WriteFile(output, []byte("converted "+req.TargetFormat), 0o644); err != nil {
		return "", err
	}
	return output, nil
}

type fixture struct {
	cfg       *config.Config
	lib       *testsupport.Library
	reader    *library.Reader
	catalog   *catalog.Store
	artifacts *artifacts.Store
	registry  *convert.Registry
}

func newFixture(t *testing.T, backends ...convert.Backend) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	lib := testsupport.BuildLibrary(t, cfg.Paths.CalibreLibraryDir,
		testsupport.SeedBook{Title: "Foundation", Formats: []string{"EPUB"}},
	)

	reader, err := library.Open(cfg.Paths.CalibreLibraryDir)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	t.Cleanup(func() { reader.Close() })

	registry := convert.NewRegistry()
	for _, backend := range backends {
		registry.Register(backend, 0)
	}

	f := &fixture{
		cfg:       cfg,
		lib:       lib,
		reader:    reader,
		catalog:   testsupport.MustOpenCatalog(t, cfg),
		artifacts: testsupport.MustOpenArtifacts(t, cfg),
		registry:  registry,
	}
	f.syncCatalog(t)
	return f
}

// syncCatalog mirrors the live library into the cached catalog, the way a
// reconcile run would.
func (f *fixture) syncCatalog(t *testing.T) {
	t.Helper()
	books, err := f.reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, b := range books {
		err := f.catalog.Upsert(context.Background(), catalog.Book{
			ID:           b.ID,
			Title:        b.Title,
			SortTitle:    catalog.SortTitleFor(b.Title, b.Sort),
			Path:         b.Path,
			UUID:         b.UUID,
			Checksum:     b.Checksum,
			Formats:      b.FormatNames(),
			LastModified: b.LastModified,
		})
		if err != nil {
			t.Fatalf("upsert %d: %v", b.ID, err)
		}
	}
}

func (f *fixture) coordinator() *coordinator.Coordinator {
	return coordinator.New(f.cfg, f.catalog, f.artifacts, f.reader, f.registry, nil, nil, nil)
}

func TestRequestArtifactConvertsAndCaches(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()
	ctx := context.Background()

	entry, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !entry.Ready() {
		t.Fatalf("entry not ready: %+v", entry)
	}
	if _, err := os.Stat(entry.Path); err != nil {
		t.Fatalf("artifact file missing: %v", err)
	}

	again, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if again.Path != entry.Path {
		t.Fatalf("cache miss on identical request: %q vs %q", again.Path, entry.Path)
	}
	if got := backend.converts.Load(); got != 1 {
		t.Fatalf("expected 1 conversion, got %d", got)
	}
}

func TestConcurrentRequestsFanIn(t *testing.T) {
	backend := &stubBackend{
		name:  "stub",
		pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")},
		block: make(chan struct{}),
	}
	f := newFixture(t, backend)
	coord := f.coordinator()

	const callers = 8
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := coord.RequestArtifact(context.Background(), 1, "MOBI", nil)
			if err != nil {
				errs[i] = err
				return
			}
			paths[i] = entry.Path
		}(i)
	}

	// Give the waiters time to pile onto the single job before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(backend.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Fatalf("caller %d got different artifact: %q vs %q", i, paths[i], paths[0])
		}
	}
	if got := backend.converts.Load(); got != 1 {
		t.Fatalf("expected exactly 1 conversion for %d callers, got %d", callers, got)
	}
}

func TestStaleArtifactReconverted(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()
	ctx := context.Background()

	if _, err := coord.RequestArtifact(ctx, 1, "MOBI", nil); err != nil {
		t.Fatalf("first request: %v", err)
	}

	// The book changes in Calibre and a reconcile updates the catalog.
	f.lib.Touch(1)
	f.syncCatalog(t)

	entry, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if err != nil {
		t.Fatalf("request after change: %v", err)
	}
	if got := backend.converts.Load(); got != 2 {
		t.Fatalf("expected reconversion, got %d conversions", got)
	}

	book, err := f.catalog.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if entry.SourceChecksum != book.Checksum {
		t.Fatal("rebuilt artifact does not carry the current checksum")
	}
}

func TestDistinctVariantsConvertSeparately(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()
	ctx := context.Background()

	plain, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if err != nil {
		t.Fatalf("plain request: %v", err)
	}
	variant, err := coord.RequestArtifact(ctx, 1, "MOBI", map[string]string{"pages": "1-3"})
	if err != nil {
		t.Fatalf("variant request: %v", err)
	}
	if plain.Path == variant.Path {
		t.Fatal("distinct variants share an artifact")
	}
	if got := backend.converts.Load(); got != 2 {
		t.Fatalf("expected 2 conversions, got %d", got)
	}
}

func TestUnknownBook(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()

	_, err := coord.RequestArtifact(context.Background(), 99, "MOBI", nil)
	if !errors.Is(err, convert.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsupportedTarget(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()

	_, err := coord.RequestArtifact(context.Background(), 1, "DJVU", nil)
	if !errors.Is(err, convert.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestUnsupportedTargetFailsWhileSlotsBusy(t *testing.T) {
	backend := &stubBackend{
		name:  "stub",
		pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")},
		block: make(chan struct{}),
	}
	f := newFixture(t, backend)
	f.cfg.Conversion.MaxConcurrent = 1
	coord := f.coordinator()

	// Occupy the only conversion slot with a real job.
	go func() {
		_, _ = coord.RequestArtifact(context.Background(), 1, "MOBI", nil)
	}()
	deadline := time.After(2 * time.Second)
	for backend.converts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("blocking conversion never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The unsupported request must fail up front instead of queueing behind
	// the occupied slot.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := coord.RequestArtifact(ctx, 1, "DJVU", nil)
	if !errors.Is(err, convert.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	for _, job := range coord.Jobs() {
		if job.Target == "DJVU" {
			t.Fatalf("unsupported request created a job: %+v", job)
		}
	}
	entry, err := f.artifacts.Get(context.Background(), artifacts.NewKey(1, "DJVU", nil))
	if err != nil || entry != nil {
		t.Fatalf("unsupported request left an artifact record: %+v err=%v", entry, err)
	}

	close(backend.block)
	coord.Wait()
}

func TestSourceUnavailableFiresReconcileHook(t *testing.T) {
	backend := &stubBackend{name: "stub", pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")}}
	f := newFixture(t, backend)
	coord := f.coordinator()

	hooked := make(chan struct{}, 1)
	coord.SetSourceUnavailableHook(func() {
		select {
		case hooked <- struct{}{}:
		default:
		}
	})

	// The book vanishes from the library while the catalog still lists it.
	f.lib.RemoveBook(1)

	_, err := coord.RequestArtifact(context.Background(), 1, "MOBI", nil)
	if !errors.Is(err, convert.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}

	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile hook never fired")
	}
	if backend.converts.Load() != 0 {
		t.Fatal("conversion ran despite missing source")
	}
}

func TestFailedConversionRecordedAndRetried(t *testing.T) {
	backend := &stubBackend{
		name:  "stub",
		pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")},
		fail:  convert.Wrap(convert.ErrConversionFailed, "stub", "convert", "boom", nil),
	}
	f := newFixture(t, backend)
	coord := f.coordinator()
	ctx := context.Background()

	_, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if !errors.Is(err, convert.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}

	entry, err := f.artifacts.Get(ctx, artifacts.NewKey(1, "MOBI", nil))
	if err != nil {
		t.Fatalf("get failed entry: %v", err)
	}
	if entry == nil || entry.Status != artifacts.StatusFailed {
		t.Fatalf("expected failed entry, got %+v", entry)
	}

	// The tool is fixed; the next request converts again instead of serving
	// the failure record.
	backend.fail = nil
	got, err := coord.RequestArtifact(ctx, 1, "MOBI", nil)
	if err != nil {
		t.Fatalf("retry request: %v", err)
	}
	if !got.Ready() {
		t.Fatalf("retry did not produce a ready artifact: %+v", got)
	}
	if backend.converts.Load() != 2 {
		t.Fatalf("expected 2 conversion attempts, got %d", backend.converts.Load())
	}
}

func TestJobsSnapshot(t *testing.T) {
	backend := &stubBackend{
		name:  "stub",
		pairs: []convert.Pair{convert.NormalizePair("EPUB", "MOBI")},
		block: make(chan struct{}),
	}
	f := newFixture(t, backend)
	coord := f.coordinator()

	go func() {
		_, _ = coord.RequestArtifact(context.Background(), 1, "MOBI", nil)
	}()

	deadline := time.After(2 * time.Second)
	for {
		jobs := coord.Jobs()
		if len(jobs) == 1 && jobs[0].State == coordinator.JobStateRunning {
			if jobs[0].BookID != 1 || jobs[0].Target != "MOBI" {
				t.Fatalf("unexpected job view %+v", jobs[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never appeared running, last snapshot %+v", jobs)
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(backend.block)
	coord.Wait()
	if len(coord.Jobs()) != 0 {
		t.Fatal("terminal job still visible in snapshot")
	}
}
