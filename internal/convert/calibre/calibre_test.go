package calibre

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"bindery/internal/convert"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("CALIBRE_HELPER_MODE") {
	case "success":
		if output := os.Getenv("CALIBRE_HELPER_OUTPUT"); output != "" {
			if err := os.WriteFile(output, []byte("converted bytes"), 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "Conversion error: something went wrong")
		os.Exit(1)
	}
	os.Exit(0)
}

func stubCommand(t *testing.T, mode string, capturedArgs *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if capturedArgs != nil {
			*capturedArgs = append([]string(nil), args...)
		}
		var output string
		if len(args) == 2 {
			output = args[1]
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"CALIBRE_HELPER_MODE="+mode,
			"CALIBRE_HELPER_OUTPUT="+output,
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestConvertMissingSource(t *testing.T) {
	backend := New()
	_, err := backend.Convert(context.Background(), convert.Request{
		SourcePath:   filepath.Join(t.TempDir(), "absent.epub"),
		TargetFormat: "MOBI",
		OutputDir:    t.TempDir(),
	})
	if !errors.Is(err, convert.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestConvertProducesTargetExtension(t *testing.T) {
	source := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(source, []byte("epub bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	outputDir := t.TempDir()

	var args []string
	stubCommand(t, "success", &args)

	backend := New()
	output, err := backend.Convert(context.Background(), convert.Request{
		SourcePath:   source,
		SourceFormat: "EPUB",
		TargetFormat: "MOBI",
		OutputDir:    outputDir,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if filepath.Ext(output) != ".mobi" {
		t.Fatalf("unexpected output path %q", output)
	}
	if filepath.Dir(output) != outputDir {
		t.Fatalf("output written outside staging dir: %q", output)
	}
	if len(args) != 2 || args[0] != source || args[1] != output {
		t.Fatalf("unexpected tool invocation %v", args)
	}
}

func TestConvertToolFailure(t *testing.T) {
	source := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(source, []byte("epub bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	stubCommand(t, "fail", nil)

	backend := New()
	_, err := backend.Convert(context.Background(), convert.Request{
		SourcePath:   source,
		TargetFormat: "PDF",
		OutputDir:    t.TempDir(),
	})
	if !errors.Is(err, convert.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestPairsExcludeIdentity(t *testing.T) {
	for _, pair := range New().Pairs() {
		if pair.Source == pair.Target {
			t.Fatalf("identity pair declared: %v", pair)
		}
	}
}
