package api

import (
	"testing"
	"time"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/convert"
)

func TestFromCatalogBook(t *testing.T) {
	removed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	book := &catalog.Book{
		ID:           7,
		Title:        "The Dispossessed",
		SortTitle:    "Dispossessed, The",
		UUID:         "uuid-7",
		Checksum:     "abc",
		Formats:      []string{"EPUB", "PDF"},
		LastModified: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		RemovedAt:    &removed,
	}

	dto := FromCatalogBook(book)
	if dto.ID != 7 || dto.Title != "The Dispossessed" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if !dto.Removed || dto.RemovedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("removal not carried: %+v", dto)
	}
	if dto.LastModified != "2026-02-01T09:30:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.LastModified)
	}
	if len(dto.Formats) != 2 {
		t.Fatalf("formats dropped: %+v", dto)
	}

	if got := FromCatalogBook(nil); got.ID != 0 {
		t.Fatalf("nil book should map to zero dto, got %+v", got)
	}
}

func TestFromArtifactEntryHidesPath(t *testing.T) {
	entry := &artifacts.Entry{
		Key:    artifacts.NewKey(3, "mobi", nil),
		Path:   "/private/location/foundation.mobi",
		Size:   1234,
		Status: artifacts.StatusReady,
	}

	dto := FromArtifactEntry(entry)
	if dto.BookID != 3 || dto.Format != "MOBI" || dto.Variant != artifacts.DefaultVariant {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.Status != "ready" || dto.Size != 1234 {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestFromBackendDescriptor(t *testing.T) {
	dto := FromBackendDescriptor(convert.Descriptor{
		Name:     "kepubify",
		Priority: 10,
		Pairs:    []convert.Pair{{Source: "EPUB", Target: "KEPUB"}},
	})
	if dto.Name != "kepubify" || len(dto.Pairs) != 1 || dto.Pairs[0].Target != "KEPUB" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestFormatTimeZero(t *testing.T) {
	if got := formatTime(time.Time{}); got != "" {
		t.Fatalf("zero time should format empty, got %q", got)
	}
}
