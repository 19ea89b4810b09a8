// Package thumbnail resizes Calibre cover images into JPEG thumbnails for
// reader UIs. Covers are not a stored book format; the coordinator resolves
// the cover.jpg Calibre keeps beside each book as the source.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"

	"bindery/internal/convert"
)

// SourceFormat is the synthetic format the coordinator maps to a book's
// cover.jpg.
const SourceFormat = "COVER"

// ParamWidth selects the thumbnail width in pixels.
const ParamWidth = "width"

const jpegQuality = 85

// Backend scales cover images in-process.
type Backend struct {
	defaultWidth int
}

// New constructs the backend with the given default width.
func New(defaultWidth int) *Backend {
	if defaultWidth <= 0 {
		defaultWidth = 300
	}
	return &Backend{defaultWidth: defaultWidth}
}

func (b *Backend) Name() string { return "thumbnail" }

func (b *Backend) Pairs() []convert.Pair {
	return []convert.Pair{{Source: SourceFormat, Target: "JPEG"}}
}

func (b *Backend) Probe(ctx context.Context) error { return nil }

// Convert decodes the cover, scales it to the requested width preserving
// aspect ratio, and writes a JPEG.
func (b *Backend) Convert(ctx context.Context, req convert.Request) (string, error) {
	width, err := b.width(req)
	if err != nil {
		return "", err
	}

	source, err := os.Open(req.SourcePath)
	if err != nil {
		return "", convert.Wrap(convert.ErrSourceUnavailable, b.Name(), "convert", req.SourcePath, err)
	}
	src, _, err := image.Decode(source)
	source.Close()
	if err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "decode", req.SourcePath, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "decode", "empty image", nil)
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	outputPath := filepath.Join(req.OutputDir, fmt.Sprintf("cover-%d.jpg", width))
	out, err := os.Create(outputPath)
	if err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "encode", "create output", err)
	}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "encode", "", err)
	}
	if err := out.Close(); err != nil {
		return "", convert.Wrap(convert.ErrConversionFailed, b.Name(), "encode", "close output", err)
	}
	return outputPath, nil
}

func (b *Backend) width(req convert.Request) (int, error) {
	raw := req.Param(ParamWidth, strconv.Itoa(b.defaultWidth))
	width, err := strconv.Atoi(raw)
	if err != nil || width < 16 || width > 4096 {
		return 0, convert.Wrap(convert.ErrConversionFailed, b.Name(), "params", "invalid width "+raw, nil)
	}
	return width, nil
}

var _ convert.Backend = (*Backend)(nil)
