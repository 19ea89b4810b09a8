package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLibrary := filepath.Join(tempHome, "Calibre Library")
	if cfg.Paths.CalibreLibraryDir != wantLibrary {
		t.Fatalf("unexpected calibre library dir: got %q want %q", cfg.Paths.CalibreLibraryDir, wantLibrary)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "bindery")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8790" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Conversion.MaxConcurrent != 2 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Conversion.MaxConcurrent)
	}
	if cfg.Conversion.EbookConvertBinary != "ebook-convert" {
		t.Fatalf("unexpected ebook-convert binary: %q", cfg.Conversion.EbookConvertBinary)
	}
	if !cfg.Reconcile.WatchLibrary {
		t.Fatal("expected library watching enabled by default")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.MetadataDBPath() != filepath.Join(wantLibrary, "metadata.db") {
		t.Fatalf("unexpected metadata.db path: %q", cfg.MetadataDBPath())
	}
}

func TestLoadParsesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`calibre_library_dir = "` + filepath.Join(dir, "books") + `"`,
		`api_bind = "127.0.0.1:9000"`,
		"",
		"[conversion]",
		"max_concurrent = 4",
		`ebook_convert_binary = "my-convert"`,
		"",
		"[logging]",
		`format = "json"`,
		`level = "debug"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing resolved config, got exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Conversion.MaxConcurrent != 4 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Conversion.MaxConcurrent)
	}
	if cfg.Conversion.EbookConvertBinary != "my-convert" {
		t.Fatalf("unexpected converter binary: %q", cfg.Conversion.EbookConvertBinary)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	// Unset sections keep defaults.
	if cfg.Artifacts.RetentionDays != 30 {
		t.Fatalf("unexpected retention days: %d", cfg.Artifacts.RetentionDays)
	}
}

func TestValidateRejectsBadBind(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CalibreLibraryDir = t.TempDir()
	cfg.Paths.APIBind = "not-a-bind"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad api_bind")
	}
}

func TestValidateRequiresLibraryDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CalibreLibraryDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing calibre_library_dir")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	written, err := config.WriteSample(path, false)
	if err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected written path: %q", written)
	}
	if _, err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected error overwriting existing config without force")
	}
	if _, err := config.WriteSample(path, true); err != nil {
		t.Fatalf("WriteSample with force: %v", err)
	}
}
