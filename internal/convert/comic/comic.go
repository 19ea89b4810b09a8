// Package comic repacks RAR comic archives (CBR) into the ZIP-based CBZ
// format most readers prefer. Extraction uses unrar when present, falling
// back to 7z.
package comic

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"bindery/internal/convert"
)

var commandContext = exec.CommandContext

// Option configures the backend.
type Option func(*Backend)

// WithUnrarBinary overrides the default unrar binary name.
func WithUnrarBinary(binary string) Option {
	return func(b *Backend) {
		if strings.TrimSpace(binary) != "" {
			b.unrar = binary
		}
	}
}

// WithSevenZipBinary overrides the default 7z binary name.
func WithSevenZipBinary(binary string) Option {
	return func(b *Backend) {
		if strings.TrimSpace(binary) != "" {
			b.sevenZip = binary
		}
	}
}

// Backend extracts CBR archives with an external tool and rezips the pages.
type Backend struct {
	unrar    string
	sevenZip string
}

// New constructs the backend using defaults.
func New(opts ...Option) *Backend {
	backend := &Backend{unrar: "unrar", sevenZip: "7z"}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

func (b *Backend) Name() string { return "comic" }

func (b *Backend) Pairs() []convert.Pair {
	return []convert.Pair{{Source: "CBR", Target: "CBZ"}}
}

// Probe passes when either extractor is on PATH.
func (b *Backend) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(b.unrar); err == nil {
		return nil
	}
	if _, err := exec.LookPath(b.sevenZip); err == nil {
		return nil
	}
	return fmt.Errorf("neither %s nor %s found", b.unrar, b.sevenZip)
}

// Convert extracts the CBR into a scratch directory and writes the entries
// into a CBZ, page order preserved by sorting paths.
func (b *Backend) Convert(ctx context.Context, req convert.Request) (string, error) {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", convert.Wrap(convert.ErrSourceUnavailable, b.Name(), "convert", req.SourcePath, err)
	}

	scratch, err := os.MkdirTemp(req.OutputDir, "cbr-extract-")
	if err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "extract", "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	if err := b.extract(ctx, req.SourcePath, scratch); err != nil {
		return "", err
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outputPath := filepath.Join(req.OutputDir, stem+".cbz")

	if err := zipDirectory(scratch, outputPath); err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "repack", "", err)
	}
	return outputPath, nil
}

func (b *Backend) extract(ctx context.Context, archive, dest string) error {
	var cmd *exec.Cmd
	if _, err := exec.LookPath(b.unrar); err == nil {
		cmd = commandContext(ctx, b.unrar, "x", "-y", archive, dest+string(os.PathSeparator)) //nolint:gosec
	} else {
		cmd = commandContext(ctx, b.sevenZip, "x", "-y", "-o"+dest, archive) //nolint:gosec
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		return convert.Wrap(convert.ErrConversionFailed, b.Name(), "extract", detail, err)
	}
	return nil
}

func zipDirectory(dir, outputPath string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk extracted pages: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("archive contained no pages")
	}
	sort.Strings(files)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create cbz: %w", err)
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		entry, err := writer.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("create cbz entry %s: %w", rel, err)
		}
		src, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open page %s: %w", rel, err)
		}
		_, copyErr := io.Copy(entry, src)
		src.Close()
		if copyErr != nil {
			return fmt.Errorf("write cbz entry %s: %w", rel, copyErr)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize cbz: %w", err)
	}
	return out.Close()
}

var _ convert.Backend = (*Backend)(nil)
