package comic

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/convert"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("COMIC_HELPER_MODE") {
	case "extract":
		dest := os.Getenv("COMIC_HELPER_DEST")
		for _, page := range []string{"02.jpg", "01.jpg"} {
			if err := os.WriteFile(filepath.Join(dest, page), []byte(page), 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "corrupt archive")
		os.Exit(1)
	}
	os.Exit(0)
}

// stubExtractor replaces the extractor subprocess, recovering the destination
// directory from either invocation shape (unrar's trailing dir, 7z's -o flag).
func stubExtractor(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		dest := ""
		for _, arg := range args {
			switch {
			case strings.HasPrefix(arg, "-o") && len(arg) > 2:
				dest = arg[2:]
			case strings.HasSuffix(arg, string(os.PathSeparator)):
				dest = strings.TrimSuffix(arg, string(os.PathSeparator))
			}
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"COMIC_HELPER_MODE="+mode,
			"COMIC_HELPER_DEST="+dest,
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub binary: %v", err)
	}
}

func TestProbeFallsBackToSevenZip(t *testing.T) {
	binDir := t.TempDir()
	writeExecutable(t, filepath.Join(binDir, "7z"))
	t.Setenv("PATH", binDir)

	if err := New().Probe(context.Background()); err != nil {
		t.Fatalf("probe with only 7z on PATH: %v", err)
	}

	neither := New(WithUnrarBinary("bindery-missing-unrar"), WithSevenZipBinary("bindery-missing-7z"))
	if err := neither.Probe(context.Background()); err == nil {
		t.Fatal("probe passed with no extractor on PATH")
	}
}

func TestConvertRepacksExtractedPages(t *testing.T) {
	source := filepath.Join(t.TempDir(), "issue-01.cbr")
	if err := os.WriteFile(source, []byte("rar bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	stubExtractor(t, "extract")

	output, err := New().Convert(context.Background(), convert.Request{
		SourcePath:   source,
		SourceFormat: "CBR",
		TargetFormat: "CBZ",
		OutputDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if filepath.Base(output) != "issue-01.cbz" {
		t.Fatalf("unexpected output name %q", output)
	}

	reader, err := zip.OpenReader(output)
	if err != nil {
		t.Fatalf("open cbz: %v", err)
	}
	defer reader.Close()
	var names []string
	for _, entry := range reader.File {
		names = append(names, entry.Name)
	}
	if len(names) != 2 || names[0] != "01.jpg" || names[1] != "02.jpg" {
		t.Fatalf("pages out of order: %v", names)
	}
}

func TestConvertExtractFailure(t *testing.T) {
	source := filepath.Join(t.TempDir(), "broken.cbr")
	if err := os.WriteFile(source, []byte("rar bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	stubExtractor(t, "fail")

	_, err := New().Convert(context.Background(), convert.Request{
		SourcePath:   source,
		TargetFormat: "CBZ",
		OutputDir:    t.TempDir(),
	})
	if !errors.Is(err, convert.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestConvertMissingSource(t *testing.T) {
	_, err := New().Convert(context.Background(), convert.Request{
		SourcePath:   filepath.Join(t.TempDir(), "absent.cbr"),
		TargetFormat: "CBZ",
		OutputDir:    t.TempDir(),
	})
	if !errors.Is(err, convert.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestZipDirectoryOrdersPages(t *testing.T) {
	dir := t.TempDir()
	pages := []string{"010.jpg", "002.jpg", filepath.Join("bonus", "001.jpg")}
	for _, page := range pages {
		path := filepath.Join(dir, page)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}

	output := filepath.Join(t.TempDir(), "out.cbz")
	if err := zipDirectory(dir, output); err != nil {
		t.Fatalf("zip: %v", err)
	}

	reader, err := zip.OpenReader(output)
	if err != nil {
		t.Fatalf("open cbz: %v", err)
	}
	defer reader.Close()
	var names []string
	for _, entry := range reader.File {
		names = append(names, entry.Name)
	}
	want := []string{"002.jpg", "010.jpg", "bonus/001.jpg"}
	if len(names) != len(want) {
		t.Fatalf("unexpected entries %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entry %d = %q, want %q (all: %v)", i, names[i], want[i], names)
		}
	}
}

func TestZipDirectoryRejectsEmptyArchive(t *testing.T) {
	if err := zipDirectory(t.TempDir(), filepath.Join(t.TempDir(), "out.cbz")); err == nil {
		t.Fatal("empty extraction produced a cbz")
	}
}
