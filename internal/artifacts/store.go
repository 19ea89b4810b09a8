package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"bindery/internal/config"
	"bindery/internal/fileutil"
)

// Store manages the artifact index and the on-disk artifact tree.
type Store struct {
	db   *sql.DB
	path string
	root string
}

// Open initializes or connects to the artifact database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.ArtifactDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, root: cfg.Paths.ArtifactDir}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Root returns the artifact tree root directory.
func (s *Store) Root() string {
	return s.root
}

// EntryDir returns the directory an artifact for key is stored under.
func (s *Store) EntryDir(key Key) string {
	return filepath.Join(s.root, strconv.FormatInt(key.BookID, 10), key.Format, key.Variant)
}

// Get fetches an artifact entry, returning nil when absent.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM artifacts WHERE key = ?`, key.String())
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return entry, nil
}

// Put inserts or replaces an artifact entry. Concurrent puts for the same key
// are idempotent; the coordinator guarantees a single writer per key.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (key, book_id, format, variant, path, source_checksum, size, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             path = excluded.path,
             source_checksum = excluded.source_checksum,
             size = excluded.size,
             status = excluded.status,
             created_at = excluded.created_at,
             updated_at = excluded.updated_at`,
		entry.Key.String(),
		entry.Key.BookID,
		entry.Key.Format,
		entry.Key.Variant,
		entry.Path,
		entry.SourceChecksum,
		entry.Size,
		string(entry.Status),
		entry.CreatedAt.Format(time.RFC3339Nano),
		entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put artifact %s: %w", entry.Key, err)
	}
	return nil
}

// Publish moves a conversion output into the artifact tree and records a
// ready entry derived from the given source checksum.
func (s *Store) Publish(ctx context.Context, key Key, outputPath, sourceChecksum string) (*Entry, error) {
	dir := s.EntryDir(key)
	dst := filepath.Join(dir, filepath.Base(outputPath))
	if err := fileutil.MoveFile(outputPath, dst); err != nil {
		return nil, fmt.Errorf("publish artifact %s: %w", key, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat published artifact: %w", err)
	}

	entry := Entry{
		Key:            key,
		Path:           dst,
		SourceChecksum: sourceChecksum,
		Size:           info.Size(),
		Status:         StatusReady,
	}
	if err := s.Put(ctx, entry); err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

// MarkStale transitions a single entry to stale.
func (s *Store) MarkStale(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts SET status = ?, updated_at = ? WHERE key = ?`,
		string(StatusStale),
		time.Now().UTC().Format(time.RFC3339Nano),
		key.String(),
	)
	if err != nil {
		return fmt.Errorf("mark stale %s: %w", key, err)
	}
	return nil
}

// Invalidate marks every entry for a book stale and returns the count.
func (s *Store) Invalidate(ctx context.Context, bookID int64) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE artifacts SET status = ?, updated_at = ? WHERE book_id = ? AND status = ?`,
		string(StatusStale),
		time.Now().UTC().Format(time.RFC3339Nano),
		bookID,
		string(StatusReady),
	)
	if err != nil {
		return 0, fmt.Errorf("invalidate artifacts for book %d: %w", bookID, err)
	}
	return res.RowsAffected()
}

// RemoveForBook deletes every entry and stored file for a book. Used when a
// tombstoned book is purged from the catalog.
func (s *Store) RemoveForBook(ctx context.Context, bookID int64) (int, error) {
	entries, err := s.entriesWhere(ctx, `book_id = ?`, bookID)
	if err != nil {
		return 0, err
	}
	return s.remove(ctx, entries)
}

// EvictStale removes stale and failed entries last touched before the cutoff,
// deleting both index rows and stored files.
func (s *Store) EvictStale(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := s.entriesWhere(
		ctx,
		`status IN (?, ?) AND updated_at < ?`,
		string(StatusStale),
		string(StatusFailed),
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return s.remove(ctx, entries)
}

// List returns all entries for a book ordered by format then variant.
func (s *Store) List(ctx context.Context, bookID int64) ([]*Entry, error) {
	return s.entriesWhere(ctx, `book_id = ? ORDER BY format, variant`, bookID)
}

// Stats returns entry counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM artifacts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("artifact stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

func (s *Store) entriesWhere(ctx context.Context, where string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM artifacts WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) remove(ctx context.Context, entries []*Entry) (int, error) {
	removed := 0
	for _, entry := range entries {
		if entry.Path != "" {
			if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("remove artifact file %s: %w", entry.Path, err)
			}
			// Prune now-empty variant/format directories, best effort.
			dir := filepath.Dir(entry.Path)
			for i := 0; i < 3 && dir != s.root; i++ {
				if os.Remove(dir) != nil {
					break
				}
				dir = filepath.Dir(dir)
			}
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE key = ?`, entry.Key.String()); err != nil {
			return removed, fmt.Errorf("delete artifact row %s: %w", entry.Key, err)
		}
		removed++
	}
	return removed, nil
}

const entryColumns = "book_id, format, variant, path, source_checksum, size, status, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry      Entry
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&entry.Key.BookID,
		&entry.Key.Format,
		&entry.Key.Variant,
		&entry.Path,
		&entry.SourceChecksum,
		&entry.Size,
		&status,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	entry.Status = Status(status)
	if t, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = t
	}
	return &entry, nil
}
