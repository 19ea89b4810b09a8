// Package api defines wire-format types and converters for the HTTP API.
// It translates internal catalog, artifact, and job models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (artifact status, job state)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
package api
