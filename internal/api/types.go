package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Book describes a catalog entry in a transport-friendly format.
type Book struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	SortTitle    string   `json:"sortTitle"`
	UUID         string   `json:"uuid,omitempty"`
	Formats      []string `json:"formats"`
	Checksum     string   `json:"checksum"`
	LastModified string   `json:"lastModified,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
	Removed      bool     `json:"removed"`
	RemovedAt    string   `json:"removedAt,omitempty"`
}

// Artifact describes one stored derived file.
type Artifact struct {
	BookID    int64  `json:"bookId"`
	Format    string `json:"format"`
	Variant   string `json:"variant"`
	Status    string `json:"status"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Job describes an in-flight conversion job.
type Job struct {
	ID        string `json:"id"`
	BookID    int64  `json:"bookId"`
	Title     string `json:"title"`
	Target    string `json:"target"`
	Variant   string `json:"variant"`
	State     string `json:"state"`
	Backend   string `json:"backend,omitempty"`
	Waiters   int    `json:"waiters"`
	CreatedAt string `json:"createdAt,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

// Task describes one scheduled maintenance task.
type Task struct {
	Name            string `json:"name"`
	IntervalSeconds int64  `json:"intervalSeconds"`
	NextRun         string `json:"nextRun,omitempty"`
	LastRun         string `json:"lastRun,omitempty"`
	LastError       string `json:"lastError,omitempty"`
	Running         bool   `json:"running"`
	Runs            int    `json:"runs"`
}

// FormatPair describes one source/target pair a backend can convert.
type FormatPair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Backend describes a registered conversion backend.
type Backend struct {
	Name       string       `json:"name"`
	Priority   int          `json:"priority"`
	Available  bool         `json:"available"`
	ProbeError string       `json:"probeError,omitempty"`
	Pairs      []FormatPair `json:"pairs"`
}

// ReconcileSummary reports what one reconcile run did.
type ReconcileSummary struct {
	StartedAt   string `json:"startedAt,omitempty"`
	FinishedAt  string `json:"finishedAt,omitempty"`
	Added       int    `json:"added"`
	Changed     int    `json:"changed"`
	Removed     int    `json:"removed"`
	Purged      int    `json:"purged"`
	Invalidated int64  `json:"invalidated"`
	ActiveBooks int    `json:"activeBooks"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	CatalogDBPath  string             `json:"catalogDbPath"`
	ArtifactDBPath string             `json:"artifactDbPath"`
	LockFilePath   string             `json:"lockFilePath"`
	ReconcilePhase string             `json:"reconcilePhase"`
	ActiveJobs     int                `json:"activeJobs"`
	LastReconcile  *ReconcileSummary  `json:"lastReconcile,omitempty"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// CatalogListResponse wraps a collection of catalog entries.
type CatalogListResponse struct {
	Books []Book `json:"books"`
}

// ArtifactListResponse wraps the stored artifacts of one book.
type ArtifactListResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

// JobListResponse wraps the in-flight conversion jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// TaskListResponse wraps the scheduled maintenance tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// BackendListResponse wraps the registered conversion backends.
type BackendListResponse struct {
	Backends []Backend `json:"backends"`
}

// ReconcileResponse acknowledges a reconcile trigger.
type ReconcileResponse struct {
	Status string `json:"status"`
}

const (
	// ReconcileAccepted means the run was started.
	ReconcileAccepted = "accepted"
	// ReconcileBusy means a run was already in progress.
	ReconcileBusy = "busy"
)
