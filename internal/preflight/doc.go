// Package preflight validates the environment before the daemon starts:
// directory permissions, Calibre database readability, and the external
// conversion binaries.
package preflight
