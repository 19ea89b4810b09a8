// Package schedule runs the daemon's periodic maintenance tasks: library
// reconciles, artifact eviction, temp cleanup. Registration is idempotent so
// a config reload can re-register tasks without duplicating them.
package schedule
