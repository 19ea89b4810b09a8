// Package daemon wires the catalog, artifact store, conversion coordinator,
// scheduler, and HTTP API into a single-instance background service. The
// flock-guarded lock file lives in the state directory; a second daemon
// against the same state refuses to start.
package daemon
