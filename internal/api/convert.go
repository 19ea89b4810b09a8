package api

import (
	"time"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/convert"
	"bindery/internal/coordinator"
	"bindery/internal/deps"
	"bindery/internal/reconcile"
	"bindery/internal/schedule"
)

// FromCatalogBook converts a catalog entry into its transport form.
func FromCatalogBook(book *catalog.Book) Book {
	if book == nil {
		return Book{}
	}
	out := Book{
		ID:           book.ID,
		Title:        book.Title,
		SortTitle:    book.SortTitle,
		UUID:         book.UUID,
		Formats:      append([]string(nil), book.Formats...),
		Checksum:     book.Checksum,
		LastModified: formatTime(book.LastModified),
		UpdatedAt:    formatTime(book.UpdatedAt),
		Removed:      book.Removed(),
	}
	if book.RemovedAt != nil {
		out.RemovedAt = formatTime(*book.RemovedAt)
	}
	return out
}

// FromCatalogBooks converts a catalog listing.
func FromCatalogBooks(books []*catalog.Book) []Book {
	out := make([]Book, 0, len(books))
	for _, book := range books {
		out = append(out, FromCatalogBook(book))
	}
	return out
}

// FromArtifactEntry converts a stored artifact record. The on-disk path stays
// internal; consumers fetch the bytes through the artifact endpoint.
func FromArtifactEntry(entry *artifacts.Entry) Artifact {
	if entry == nil {
		return Artifact{}
	}
	return Artifact{
		BookID:    entry.Key.BookID,
		Format:    entry.Key.Format,
		Variant:   entry.Key.Variant,
		Status:    string(entry.Status),
		Size:      entry.Size,
		CreatedAt: formatTime(entry.CreatedAt),
		UpdatedAt: formatTime(entry.UpdatedAt),
	}
}

// FromArtifactEntries converts an artifact listing.
func FromArtifactEntries(entries []*artifacts.Entry) []Artifact {
	out := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromArtifactEntry(entry))
	}
	return out
}

// FromJobView converts a coordinator job snapshot.
func FromJobView(view coordinator.JobView) Job {
	return Job{
		ID:        view.ID,
		BookID:    view.BookID,
		Title:     view.Title,
		Target:    view.Target,
		Variant:   view.Variant,
		State:     string(view.State),
		Backend:   view.Backend,
		Waiters:   view.Waiters,
		CreatedAt: formatTime(view.CreatedAt),
		StartedAt: formatTime(view.StartedAt),
	}
}

// FromJobViews converts a job listing.
func FromJobViews(views []coordinator.JobView) []Job {
	out := make([]Job, 0, len(views))
	for _, view := range views {
		out = append(out, FromJobView(view))
	}
	return out
}

// FromTaskStatus converts a schedule task status.
func FromTaskStatus(status schedule.Status) Task {
	return Task{
		Name:            status.Name,
		IntervalSeconds: int64(status.Interval / time.Second),
		NextRun:         formatTime(status.NextRun),
		LastRun:         formatTime(status.LastRun),
		LastError:       status.LastErr,
		Running:         status.Running,
		Runs:            status.Runs,
	}
}

// FromTaskStatuses converts a task listing.
func FromTaskStatuses(statuses []schedule.Status) []Task {
	out := make([]Task, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, FromTaskStatus(status))
	}
	return out
}

// FromBackendDescriptor converts a conversion backend descriptor.
func FromBackendDescriptor(desc convert.Descriptor) Backend {
	pairs := make([]FormatPair, 0, len(desc.Pairs))
	for _, pair := range desc.Pairs {
		pairs = append(pairs, FormatPair{Source: pair.Source, Target: pair.Target})
	}
	return Backend{
		Name:       desc.Name,
		Priority:   desc.Priority,
		Available:  desc.Available,
		ProbeError: desc.ProbeError,
		Pairs:      pairs,
	}
}

// FromBackendDescriptors converts a backend listing.
func FromBackendDescriptors(descs []convert.Descriptor) []Backend {
	out := make([]Backend, 0, len(descs))
	for _, desc := range descs {
		out = append(out, FromBackendDescriptor(desc))
	}
	return out
}

// FromReconcileSummary converts a reconcile run summary.
func FromReconcileSummary(summary *reconcile.Summary) *ReconcileSummary {
	if summary == nil {
		return nil
	}
	return &ReconcileSummary{
		StartedAt:   formatTime(summary.StartedAt),
		FinishedAt:  formatTime(summary.FinishedAt),
		Added:       summary.Added,
		Changed:     summary.Changed,
		Removed:     summary.Removed,
		Purged:      summary.Purged,
		Invalidated: summary.Invalidated,
		ActiveBooks: summary.ActiveBooks,
	}
}

// FromDependencyStatuses converts binary availability reports.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
