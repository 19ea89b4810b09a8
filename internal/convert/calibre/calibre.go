// Package calibre wraps Calibre's ebook-convert command line tool, the
// general-purpose converter covering most ebook format pairs.
package calibre

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bindery/internal/convert"
)

var commandContext = exec.CommandContext

var sources = []string{"AZW3", "CBZ", "DOCX", "EPUB", "FB2", "HTMLZ", "LIT", "MOBI", "ODT", "PDB", "PDF", "RTF", "TXT"}

var targets = []string{"AZW3", "EPUB", "MOBI", "PDF", "TXT"}

// Option configures the backend.
type Option func(*Backend)

// WithBinary overrides the default ebook-convert binary name.
func WithBinary(binary string) Option {
	return func(b *Backend) {
		if strings.TrimSpace(binary) != "" {
			b.binary = binary
		}
	}
}

// Backend shells out to ebook-convert.
type Backend struct {
	binary string
}

// New constructs the backend using defaults.
func New(opts ...Option) *Backend {
	backend := &Backend{binary: "ebook-convert"}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

func (b *Backend) Name() string { return "calibre" }

// Pairs enumerates the full source-to-target cross product minus identity.
func (b *Backend) Pairs() []convert.Pair {
	pairs := make([]convert.Pair, 0, len(sources)*len(targets))
	for _, source := range sources {
		for _, target := range targets {
			if source == target {
				continue
			}
			pairs = append(pairs, convert.Pair{Source: source, Target: target})
		}
	}
	return pairs
}

// Probe checks that the configured binary resolves on PATH.
func (b *Backend) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(b.binary); err != nil {
		return fmt.Errorf("%s not found: %w", b.binary, err)
	}
	return nil
}

// Convert runs ebook-convert and returns the output path. ebook-convert
// infers both formats from the file extensions.
func (b *Backend) Convert(ctx context.Context, req convert.Request) (string, error) {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", convert.Wrap(convert.ErrSourceUnavailable, b.Name(), "convert", req.SourcePath, err)
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outputPath := filepath.Join(req.OutputDir, stem+"."+strings.ToLower(req.TargetFormat))

	cmd := commandContext(ctx, b.binary, req.SourcePath, outputPath) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "convert", tail(output), err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "convert", "no output produced", err)
	}
	return outputPath, nil
}

// tail trims tool output to the last few lines for error messages.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}

var _ convert.Backend = (*Backend)(nil)
