// Package coordinator owns the on-demand conversion pipeline. It answers
// artifact requests from the cache when the stored copy is still valid for
// the book's current checksum, and otherwise runs exactly one conversion job
// per artifact key no matter how many callers ask concurrently.
//
// Conversion parallelism is bounded by a weighted semaphore sized from
// configuration. Jobs are in-memory only; a restart simply reconverts on the
// next request.
package coordinator
