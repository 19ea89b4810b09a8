package daemon_test

import (
	"context"
	"testing"
	"time"

	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/logging"
	"bindery/internal/testsupport"
)

func newTestDaemon(t *testing.T, books ...testsupport.SeedBook) (*daemon.Daemon, *config.Config, *testsupport.Library) {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	lib := testsupport.BuildLibrary(t, cfg.Paths.CalibreLibraryDir, books...)

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, cfg, lib
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newTestDaemon(t, testsupport.SeedBook{Title: "Foundation", Formats: []string{"EPUB"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID == 0 {
		t.Fatal("expected daemon to report a pid")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	d1, cfg, _ := newTestDaemon(t, testsupport.SeedBook{Title: "Dune", Formats: []string{"EPUB"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d1.Start(ctx); err != nil {
		t.Fatalf("first daemon start: %v", err)
	}
	defer d1.Stop()

	d2, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("second daemon.New: %v", err)
	}
	defer d2.Close()

	if err := d2.Start(ctx); err == nil {
		t.Fatal("expected second instance to fail on the lock")
	}
}

func TestDaemonRunsInitialReconcile(t *testing.T) {
	d, _, _ := newTestDaemon(t,
		testsupport.SeedBook{Title: "Hyperion", Formats: []string{"EPUB"}},
		testsupport.SeedBook{Title: "Ubik", Formats: []string{"EPUB", "PDF"}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	waitFor(t, 5*time.Second, func() bool {
		books, err := d.Catalog().List(context.Background(), false)
		return err == nil && len(books) == 2
	})
}

func TestDaemonRegistersMaintenanceTasks(t *testing.T) {
	d, _, _ := newTestDaemon(t, testsupport.SeedBook{Title: "Solaris", Formats: []string{"EPUB"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	names := make(map[string]bool)
	for _, task := range d.Scheduler().Snapshot() {
		names[task.Name] = true
	}
	for _, want := range []string{"reconcile", "artifact-cleanup", "temp-cleanup"} {
		if !names[want] {
			t.Fatalf("task %q not registered, have %v", want, names)
		}
	}
}

func TestDaemonDependencies(t *testing.T) {
	d, _, _ := newTestDaemon(t, testsupport.SeedBook{Title: "Blindsight", Formats: []string{"EPUB"}})

	statuses := d.Dependencies(context.Background())
	if len(statuses) != 5 {
		t.Fatalf("expected 5 dependency statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if !status.Available {
			t.Fatalf("stubbed binary %q reported unavailable: %s", status.Name, status.Detail)
		}
	}
}
