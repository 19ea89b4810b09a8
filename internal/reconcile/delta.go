package reconcile

import (
	"sort"

	"bindery/internal/library"
)

// Delta partitions a library snapshot against the cached catalog. Every book
// id present in either side lands in exactly one bucket.
type Delta struct {
	// Added books exist in the library but not the active catalog.
	Added []library.Book
	// Changed books exist in both but their checksums differ.
	Changed []library.Book
	// Removed ids exist in the active catalog but not the library.
	Removed []int64
	// Unchanged ids exist in both with matching checksums.
	Unchanged []int64
}

// Empty reports whether the delta carries no work.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// ComputeDelta diffs a snapshot against the catalog's id-to-checksum map.
// Buckets come back sorted by book id so apply order is deterministic.
func ComputeDelta(snapshot []library.Book, existing map[int64]string) Delta {
	var delta Delta

	seen := make(map[int64]struct{}, len(snapshot))
	for _, book := range snapshot {
		seen[book.ID] = struct{}{}
		checksum, ok := existing[book.ID]
		switch {
		case !ok:
			delta.Added = append(delta.Added, book)
		case checksum != book.Checksum:
			delta.Changed = append(delta.Changed, book)
		default:
			delta.Unchanged = append(delta.Unchanged, book.ID)
		}
	}

	for id := range existing {
		if _, ok := seen[id]; !ok {
			delta.Removed = append(delta.Removed, id)
		}
	}

	sort.Slice(delta.Added, func(i, j int) bool { return delta.Added[i].ID < delta.Added[j].ID })
	sort.Slice(delta.Changed, func(i, j int) bool { return delta.Changed[i].ID < delta.Changed[j].ID })
	sort.Slice(delta.Removed, func(i, j int) bool { return delta.Removed[i] < delta.Removed[j] })
	sort.Slice(delta.Unchanged, func(i, j int) bool { return delta.Unchanged[i] < delta.Unchanged[j] })
	return delta
}
