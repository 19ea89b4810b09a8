// Package pdfpage extracts page ranges from PDFs in-process with pdfcpu.
// Readers use it to fetch samples or single chapters without downloading the
// whole book.
package pdfpage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"bindery/internal/convert"
)

// ParamPages selects the pages to keep, in pdfcpu selection syntax
// (for example "1-10" or "3,7,9").
const ParamPages = "pages"

// Backend trims PDFs to a page selection. No external tools involved, so it
// is always available.
type Backend struct{}

// New constructs the backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return "pdfpage" }

// Pairs declares the identity PDF pair; the pages parameter selects a range,
// and without it the whole document passes through.
func (b *Backend) Pairs() []convert.Pair {
	return []convert.Pair{{Source: "PDF", Target: "PDF"}}
}

func (b *Backend) Probe(ctx context.Context) error { return nil }

// Convert validates the source and writes a trimmed copy containing only the
// selected pages.
func (b *Backend) Convert(ctx context.Context, req convert.Request) (string, error) {
	source, err := os.Open(req.SourcePath)
	if err != nil {
		return "", convert.Wrap(convert.ErrSourceUnavailable, b.Name(), "convert", req.SourcePath, err)
	}
	pageCount, err := api.PageCount(source, nil)
	source.Close()
	if err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "page count", req.SourcePath, err)
	}
	if pageCount == 0 {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "page count", "empty document", nil)
	}

	selection := pageSelection(req.Param(ParamPages, ""), pageCount)

	base := filepath.Base(req.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	outputPath := filepath.Join(req.OutputDir, fmt.Sprintf("%s-pages-%s.pdf", stem, sanitize(selection)))

	if err := api.TrimFile(req.SourcePath, outputPath, []string{selection}, nil); err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "trim", selection, err)
	}
	return outputPath, nil
}

// pageSelection falls back to the full page range when the caller does not
// ask for specific pages, so a bare PDF request serves the whole document.
func pageSelection(requested string, pageCount int) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	return fmt.Sprintf("1-%d", pageCount)
}

// sanitize keeps the selection filename-safe.
func sanitize(selection string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '-':
			return r
		case r == ',':
			return '_'
		default:
			return -1
		}
	}, selection)
}

var _ convert.Backend = (*Backend)(nil)
