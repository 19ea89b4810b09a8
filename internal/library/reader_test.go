package library_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/library"
	"bindery/internal/testsupport"
)

func TestOpenMissingDatabase(t *testing.T) {
	_, err := library.Open(t.TempDir())
	if !errors.Is(err, library.ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestSnapshotReadsBooksAndFormats(t *testing.T) {
	dir := t.TempDir()
	testsupport.BuildLibrary(t, dir,
		testsupport.SeedBook{Title: "The Left Hand of Darkness", Formats: []string{"epub", "PDF"}},
		testsupport.SeedBook{Title: "Solaris", Formats: []string{"EPUB"}},
	)

	reader, err := library.Open(dir)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer reader.Close()

	books, err := reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}

	first := books[0]
	if first.Title != "The Left Hand of Darkness" {
		t.Fatalf("unexpected first title %q", first.Title)
	}
	if got := first.FormatNames(); len(got) != 2 || got[0] != "EPUB" || got[1] != "PDF" {
		t.Fatalf("unexpected formats %v", got)
	}
	if !first.HasFormat("epub") || first.HasFormat("mobi") {
		t.Fatalf("HasFormat mismatch for %v", first.FormatNames())
	}
	if first.Checksum == "" || books[1].Checksum == "" {
		t.Fatal("expected non-empty checksums")
	}
	if first.Checksum == books[1].Checksum {
		t.Fatal("distinct books must not share a checksum")
	}
}

func TestSnapshotChecksumStability(t *testing.T) {
	dir := t.TempDir()
	lib := testsupport.BuildLibrary(t, dir,
		testsupport.SeedBook{Title: "Dune", Formats: []string{"EPUB"}},
	)

	reader, err := library.Open(dir)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer reader.Close()

	before, err := reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	again, err := reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if before[0].Checksum != again[0].Checksum {
		t.Fatal("checksum changed without a library mutation")
	}

	lib.Touch(before[0].ID)
	after, err := reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot after touch: %v", err)
	}
	if before[0].Checksum == after[0].Checksum {
		t.Fatal("checksum did not change after last_modified bump")
	}
}

func TestSourcePathResolvesExistingFile(t *testing.T) {
	dir := t.TempDir()
	testsupport.BuildLibrary(t, dir,
		testsupport.SeedBook{Title: "Hyperion", Formats: []string{"EPUB"}},
	)

	reader, err := library.Open(dir)
	if err != nil {
		t.Fatalf("open library: %v", err)
	}
	defer reader.Close()

	books, err := reader.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	path, ok := reader.SourcePath(books[0], "epub")
	if !ok {
		t.Fatal("expected source path for EPUB")
	}
	if filepath.Ext(path) != ".epub" {
		t.Fatalf("unexpected extension on %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("source file missing: %v", err)
	}

	if _, ok := reader.SourcePath(books[0], "MOBI"); ok {
		t.Fatal("unexpected source path for absent format")
	}
}

func TestNormalizeFormat(t *testing.T) {
	cases := map[string]string{
		".epub": "EPUB",
		"Pdf":   "PDF",
		" azw3": "AZW3",
	}
	for input, want := range cases {
		if got := library.NormalizeFormat(input); got != want {
			t.Errorf("NormalizeFormat(%q) = %q, want %q", input, got, want)
		}
	}
}
