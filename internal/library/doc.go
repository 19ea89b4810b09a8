// Package library reads book metadata from a Calibre metadata.db.
//
// Access is strictly read-only: the database belongs to Calibre, and bindery
// opens it with mode=ro. Each snapshot carries a per-book checksum derived
// from the fields Calibre touches when a book changes, which the reconciler
// compares against the cached catalog.
package library
