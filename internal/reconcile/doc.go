// Package reconcile mirrors the Calibre library into bindery's cached
// catalog. A run scans metadata.db, diffs book checksums against the catalog,
// then applies the delta: upserts for added and changed books, artifact
// invalidation for changed ones, tombstones for removed ones, and permanent
// purges once a tombstone outlives its grace period.
//
// Runs are single-flight. Calibre owns metadata.db; this package only ever
// reads it.
package reconcile
