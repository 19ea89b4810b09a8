package convert

import (
	"context"
	"strings"
)

// Pair is one supported source-to-target format combination.
type Pair struct {
	Source string
	Target string
}

// NormalizePair canonicalizes both formats (upper-case, no leading dot).
func NormalizePair(source, target string) Pair {
	return Pair{Source: normalizeFormat(source), Target: normalizeFormat(target)}
}

// Request carries everything a backend needs to produce one artifact.
type Request struct {
	BookID       int64
	SourcePath   string
	SourceFormat string
	TargetFormat string
	// Params holds variant parameters such as page selections or pixel
	// widths. Backends ignore keys they do not understand.
	Params map[string]string
	// OutputDir is a job-private staging directory. The backend writes its
	// output there and returns the full path; the caller publishes it.
	OutputDir string
}

// Param returns a variant parameter or the given fallback.
func (r Request) Param(key, fallback string) string {
	if value, ok := r.Params[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// Backend converts book files from one format to another.
type Backend interface {
	// Name identifies the backend in logs, metrics, and listings.
	Name() string
	// Pairs enumerates the source/target combinations this backend handles.
	Pairs() []Pair
	// Probe reports nil when the backend can run on this host. Called once
	// per process; the registry caches the result.
	Probe(ctx context.Context) error
	// Convert produces the target file in req.OutputDir and returns its path.
	Convert(ctx context.Context, req Request) (string, error)
}

// Descriptor is a point-in-time view of a registered backend for listings.
type Descriptor struct {
	Name      string
	Pairs     []Pair
	Priority  int
	Available bool
	// ProbeError carries the availability failure reason, if any.
	ProbeError string
}

func normalizeFormat(format string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(format), "."))
}
