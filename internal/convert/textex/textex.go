// Package textex extracts plain text from PDFs via poppler's pdftotext.
// Preferred over a full calibre conversion for PDF sources because it keeps
// layout and runs in a fraction of the time.
package textex

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

// Option configures the backend.
type Option func(*Backend)

// WithBinary overrides the default pdftotext binary name.
func WithBinary(binary string) Option {
	return func(b *Backend) {
		if strings.TrimSpace(binary) != "" {
			b.binary = binary
		}
	}
}

// Backend shells out to pdftotext.
type Backend struct {
	binary string
}

// New constructs the backend using defaults.
func New(opts ...Option) *Backend {
	backend := &Backend{binary: "pdftotext"}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

func (b *Backend) Name() string { return "textex" }

func (b *Backend) Pairs() []convert.Pair {
	return []convert.Pair{{Source: "PDF", Target: "TXT"}}
}

func (b *Backend) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(b.binary); err != nil {
		return fmt.Errorf("%s not found: %w", b.binary, err)
	}
	return nil
}

// Convert runs pdftotext with layout preservation.
func (b *Backend) Convert(ctx context.Context, req convert.Request) (string, error) {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return "", convert.Wrap(convert.ErrSourceUnavailable, b.Name(), "convert", req.SourcePath, err)
	}

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outputPath := filepath.Join(req.OutputDir, stem+".txt")

	cmd := commandContext(ctx, b.binary, "-layout", req.SourcePath, outputPath) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "convert", detail, err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "convert", "no output produced", err)
	}
	return outputPath, nil
}

var _ convert.Backend = (*Backend)(nil)
