package thumbnail

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/convert"
)

func writeCover(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "cover.jpg")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create cover: %v", err)
	}
	defer out.Close()
	if err := jpeg.Encode(out, img, nil); err != nil {
		t.Fatalf("encode cover: %v", err)
	}
	return path
}

func TestConvertScalesToRequestedWidth(t *testing.T) {
	cover := writeCover(t, t.TempDir(), 600, 900)
	outputDir := t.TempDir()

	backend := New(300)
	output, err := backend.Convert(context.Background(), convert.Request{
		SourcePath:   cover,
		SourceFormat: SourceFormat,
		TargetFormat: "JPEG",
		Params:       map[string]string{ParamWidth: "150"},
		OutputDir:    outputDir,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer file.Close()
	decoded, err := jpeg.Decode(file)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 150 {
		t.Fatalf("expected width 150, got %d", bounds.Dx())
	}
	if bounds.Dy() != 225 {
		t.Fatalf("aspect ratio not preserved, height %d", bounds.Dy())
	}
}

func TestConvertDefaultWidth(t *testing.T) {
	cover := writeCover(t, t.TempDir(), 400, 400)

	backend := New(200)
	output, err := backend.Convert(context.Background(), convert.Request{
		SourcePath: cover,
		OutputDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	file, err := os.Open(output)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer file.Close()
	decoded, err := jpeg.Decode(file)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if decoded.Bounds().Dx() != 200 {
		t.Fatalf("expected default width 200, got %d", decoded.Bounds().Dx())
	}
}

func TestConvertDecodesPNGCovers(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	path := filepath.Join(dir, "cover.png")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create cover: %v", err)
	}
	if err := png.Encode(out, img); err != nil {
		t.Fatalf("encode cover: %v", err)
	}
	out.Close()

	backend := New(32)
	if _, err := backend.Convert(context.Background(), convert.Request{SourcePath: path, OutputDir: t.TempDir()}); err != nil {
		t.Fatalf("convert png cover: %v", err)
	}
}

func TestConvertRejectsInvalidWidth(t *testing.T) {
	cover := writeCover(t, t.TempDir(), 100, 100)

	backend := New(300)
	_, err := backend.Convert(context.Background(), convert.Request{
		SourcePath: cover,
		Params:     map[string]string{ParamWidth: "8"},
		OutputDir:  t.TempDir(),
	})
	if !errors.Is(err, convert.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestConvertMissingCover(t *testing.T) {
	backend := New(300)
	_, err := backend.Convert(context.Background(), convert.Request{
		SourcePath: filepath.Join(t.TempDir(), "cover.jpg"),
		OutputDir:  t.TempDir(),
	})
	if !errors.Is(err, convert.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
