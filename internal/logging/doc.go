// Package logging builds the slog loggers used throughout Bindery.
//
// It offers a console handler that renders compact single-line records with a
// leading component label, a JSON handler for machine-readable output, field
// helpers with standardized keys, and a no-op logger for tests.
package logging
