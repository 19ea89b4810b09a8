package catalog_test

import (
	"context"
	"testing"
	"time"

	"bindery/internal/catalog"
	"bindery/internal/testsupport"
)

func seedBook(id int64, title, checksum string) catalog.Book {
	return catalog.Book{
		ID:        id,
		Title:     title,
		SortTitle: catalog.SortTitleFor(title, ""),
		Path:      "Author/" + title,
		UUID:      "uuid-" + title,
		Checksum:  checksum,
		Formats:   []string{"EPUB"},
	}
}

func TestUpsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	book := seedBook(1, "Foundation", "aaa")
	if err := store.Upsert(ctx, book); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "Foundation" || got.Checksum != "aaa" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Removed() {
		t.Fatal("fresh entry must not be tombstoned")
	}

	book.Checksum = "bbb"
	if err := store.Upsert(ctx, book); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Checksum != "bbb" {
		t.Fatalf("checksum not updated: %q", got.Checksum)
	}

	missing, err := store.Get(ctx, 99)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing id, got %+v", missing)
	}
}

func TestListOrderAndTombstones(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	for _, book := range []catalog.Book{
		seedBook(1, "Ubik", "u1"),
		seedBook(2, "The Dispossessed", "d1"),
		seedBook(3, "Anathem", "a1"),
	} {
		if err := store.Upsert(ctx, book); err != nil {
			t.Fatalf("upsert %d: %v", book.ID, err)
		}
	}

	books, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("expected 3 books, got %d", len(books))
	}
	// "The Dispossessed" sorts as "Dispossessed, The".
	if books[0].ID != 3 || books[1].ID != 2 || books[2].ID != 1 {
		t.Fatalf("unexpected sort order: %d %d %d", books[0].ID, books[1].ID, books[2].ID)
	}

	if err := store.MarkRemoved(ctx, []int64{2}, time.Now()); err != nil {
		t.Fatalf("mark removed: %v", err)
	}

	active, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active books, got %d", len(active))
	}

	all, err := store.List(ctx, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 books including tombstones, got %d", len(all))
	}

	checksums, err := store.Checksums(ctx)
	if err != nil {
		t.Fatalf("checksums: %v", err)
	}
	if _, ok := checksums[2]; ok {
		t.Fatal("tombstoned book must not appear in checksum map")
	}
	if len(checksums) != 2 {
		t.Fatalf("expected 2 checksums, got %d", len(checksums))
	}
}

func TestUpsertClearsTombstone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	book := seedBook(1, "Blindsight", "b1")
	if err := store.Upsert(ctx, book); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.MarkRemoved(ctx, []int64{1}, time.Now()); err != nil {
		t.Fatalf("mark removed: %v", err)
	}

	if err := store.Upsert(ctx, book); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Removed() {
		t.Fatal("upsert must clear the tombstone")
	}
}

func TestPurgeRemovedHonorsCutoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	old := seedBook(1, "Old", "o1")
	recent := seedBook(2, "Recent", "r1")
	for _, book := range []catalog.Book{old, recent} {
		if err := store.Upsert(ctx, book); err != nil {
			t.Fatalf("upsert %d: %v", book.ID, err)
		}
	}

	now := time.Now()
	if err := store.MarkRemoved(ctx, []int64{1}, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("mark old removed: %v", err)
	}
	if err := store.MarkRemoved(ctx, []int64{2}, now); err != nil {
		t.Fatalf("mark recent removed: %v", err)
	}

	purged, err := store.PurgeRemoved(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(purged) != 1 || purged[0] != 1 {
		t.Fatalf("unexpected purge result %v", purged)
	}

	if got, err := store.Get(ctx, 1); err != nil || got != nil {
		t.Fatalf("purged entry still present: %+v err=%v", got, err)
	}
	if got, err := store.Get(ctx, 2); err != nil || got == nil {
		t.Fatalf("recent tombstone missing: err=%v", err)
	}

	active, removed, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if active != 0 || removed != 1 {
		t.Fatalf("unexpected stats active=%d removed=%d", active, removed)
	}
}

func TestSortTitleFor(t *testing.T) {
	cases := []struct {
		title string
		sort  string
		want  string
	}{
		{"The Stars My Destination", "", "Stars My Destination, The"},
		{"A Fire Upon the Deep", "", "Fire Upon The Deep, A"},
		{"Neuromancer", "", "Neuromancer"},
		{"The Hobbit", "Hobbit, The", "Hobbit, The"},
	}
	for _, tc := range cases {
		if got := catalog.SortTitleFor(tc.title, tc.sort); got != tc.want {
			t.Errorf("SortTitleFor(%q, %q) = %q, want %q", tc.title, tc.sort, got, tc.want)
		}
	}
}
