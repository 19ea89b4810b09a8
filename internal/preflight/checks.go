package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"bindery/internal/config"
	"bindery/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLibraryDatabase verifies that Calibre's metadata.db exists and is
// readable. Bindery never writes to it, so read access is enough.
func CheckLibraryDatabase(cfg *config.Config) Result {
	const name = "Calibre metadata.db"

	path := cfg.MetadataDBPath()
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckSystemDeps evaluates the external conversion binaries for the given
// config. Both the daemon status endpoint and the CLI status command use
// this to avoid duplicating the requirements list. Every tool except
// ebook-convert is optional: its backend simply probes unavailable and the
// generalist covers the pair where it can.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "ebook-convert",
			Command:     cfg.Conversion.EbookConvertBinary,
			Description: "Calibre's converter, covers most format pairs",
		},
		{
			Name:        "kepubify",
			Command:     cfg.Conversion.KepubifyBinary,
			Description: "Kobo EPUB conversion",
			Optional:    true,
		},
		{
			Name:        "unrar",
			Command:     cfg.Conversion.UnrarBinary,
			Description: "CBR comic extraction",
			Optional:    true,
		},
		{
			Name:        "7z",
			Command:     cfg.Conversion.SevenZipBinary,
			Description: "CBR comic extraction fallback",
			Optional:    true,
		},
		{
			Name:        "pdftotext",
			Command:     cfg.Conversion.PdfToTextBinary,
			Description: "PDF text extraction",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
