// Package catalog persists bindery's cached view of the Calibre library.
//
// The cache is the reconciler's apply target: books are upserted when added
// or changed, tombstoned when they disappear from the library, and purged
// once the tombstone grace period expires. All other components treat the
// catalog as read-only.
package catalog
