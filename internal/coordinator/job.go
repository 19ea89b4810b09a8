package coordinator

import (
	"time"

	"bindery/internal/artifacts"
)

// JobState tracks a conversion job through its lifecycle. Terminal jobs are
// discarded once every waiter has been answered; only in-flight jobs appear
// in snapshots.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

type job struct {
	id       string
	key      artifacts.Key
	bookID   int64
	title    string
	params   map[string]string
	checksum string

	created time.Time
	started time.Time
	state   JobState
	backend string
	waiters int

	done  chan struct{}
	entry *artifacts.Entry
	err   error
}

// JobView is a point-in-time snapshot of one in-flight job.
type JobView struct {
	ID        string
	BookID    int64
	Title     string
	Target    string
	Variant   string
	State     JobState
	Backend   string
	Waiters   int
	CreatedAt time.Time
	StartedAt time.Time
}
