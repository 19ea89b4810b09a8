package artifacts

import "time"

// Status describes the lifecycle state of a stored artifact.
type Status string

const (
	// StatusReady marks an artifact whose source checksum matched at creation
	// and has not been invalidated since.
	StatusReady Status = "ready"
	// StatusStale marks an artifact whose source book changed after creation.
	StatusStale Status = "stale"
	// StatusFailed marks the record of a conversion that produced no usable
	// output. Kept for diagnostics until evicted.
	StatusFailed Status = "failed"
)

// Entry is one stored artifact record.
type Entry struct {
	Key            Key
	Path           string
	SourceChecksum string
	Size           int64
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ready reports whether the entry can be served without reconversion,
// provided its source checksum still matches the current book.
func (e *Entry) Ready() bool {
	return e != nil && e.Status == StatusReady
}
