package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/preflight"
	"bindery/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := preflight.CheckDirectoryAccess("Test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable dir: %+v", result)
	}

	result = preflight.CheckDirectoryAccess("Test", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatalf("expected failure for missing dir: %+v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Test", file)
	if result.Passed {
		t.Fatalf("expected failure for non-directory: %+v", result)
	}
}

func TestCheckLibraryDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := preflight.CheckLibraryDatabase(cfg)
	if result.Passed {
		t.Fatalf("expected failure without metadata.db: %+v", result)
	}

	testsupport.BuildLibrary(t, cfg.Paths.CalibreLibraryDir)
	result = preflight.CheckLibraryDatabase(cfg)
	if !result.Passed {
		t.Fatalf("expected pass with metadata.db present: %+v", result)
	}
}

func TestRunAllCoversDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.BuildLibrary(t, cfg.Paths.CalibreLibraryDir)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 checks, got %d", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check %q failed: %s", result.Name, result.Detail)
		}
	}

	if got := preflight.RunAll(context.Background(), nil); got != nil {
		t.Fatalf("nil config should yield nil results, got %+v", got)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ebook-convert", "kepubify"))
	cfg.Conversion.UnrarBinary = "definitely-not-installed"

	statuses := preflight.CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 5 {
		t.Fatalf("expected 5 dependency statuses, got %d", len(statuses))
	}
	byName := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		byName[status.Name] = status.Available
	}
	if !byName["ebook-convert"] || !byName["kepubify"] {
		t.Fatalf("stubbed binaries reported unavailable: %+v", statuses)
	}
	if byName["unrar"] {
		t.Fatal("missing unrar reported available")
	}
}
