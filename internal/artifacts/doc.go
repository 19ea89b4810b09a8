// Package artifacts stores derived files (converted formats, thumbnails,
// extracted text) keyed by book, target format, and variant parameters.
//
// The SQLite index tracks entry status; the files themselves live in a
// content-addressed tree under the configured artifact directory. Only the
// job coordinator writes ready entries; the reconciler marks them stale when
// a source book changes, and the cleanup task evicts them past retention.
package artifacts
