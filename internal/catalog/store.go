package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bindery/internal/config"
)

// Store manages the cached catalog backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CatalogDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
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

// Path returns the catalog database location.
func (s *Store) Path() string {
	return s.path
}

// Upsert inserts or replaces a catalog entry and clears any tombstone.
func (s *Store) Upsert(ctx context.Context, book Book) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO books (id, title, sort_title, path, uuid, checksum, formats, last_modified, updated_at, removed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             sort_title = excluded.sort_title,
             path = excluded.path,
             uuid = excluded.uuid,
             checksum = excluded.checksum,
             formats = excluded.formats,
             last_modified = excluded.last_modified,
             updated_at = excluded.updated_at,
             removed_at = NULL`,
		book.ID,
		book.Title,
		book.SortTitle,
		book.Path,
		book.UUID,
		book.Checksum,
		strings.Join(book.Formats, ","),
		nullableTime(book.LastModified),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert book %d: %w", book.ID, err)
	}
	return nil
}

// Get fetches a catalog entry by identifier, tombstoned entries included.
func (s *Store) Get(ctx context.Context, id int64) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// List returns catalog entries ordered by sort title. Tombstoned entries are
// excluded unless includeRemoved is set.
func (s *Store) List(ctx context.Context, includeRemoved bool) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books`
	if !includeRemoved {
		query += ` WHERE removed_at IS NULL`
	}
	query += ` ORDER BY sort_title, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Checksums returns the identifier-to-checksum mapping of the active catalog.
func (s *Store) Checksums(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, checksum FROM books WHERE removed_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("query checksums: %w", err)
	}
	defer rows.Close()

	checksums := make(map[int64]string)
	for rows.Next() {
		var (
			id       int64
			checksum string
		)
		if err := rows.Scan(&id, &checksum); err != nil {
			return nil, err
		}
		checksums[id] = checksum
	}
	return checksums, rows.Err()
}

// MarkRemoved tombstones the given identifiers at the provided time.
func (s *Store) MarkRemoved(ctx context.Context, ids []int64, when time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	stamp := when.UTC().Format(time.RFC3339Nano)
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, stamp, stamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE books SET removed_at = ?, updated_at = ? WHERE id IN (` + placeholders + `) AND removed_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}
	return nil
}

// PurgeRemoved deletes tombstoned entries older than the cutoff and returns
// the purged identifiers.
func (s *Store) PurgeRemoved(ctx context.Context, cutoff time.Time) ([]int64, error) {
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM books WHERE removed_at IS NOT NULL AND removed_at < ?`, stamp)
	if err != nil {
		return nil, fmt.Errorf("query tombstones: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return nil, fmt.Errorf("purge tombstones: %w", err)
	}
	return ids, nil
}

// Stats returns active and tombstoned entry counts.
func (s *Store) Stats(ctx context.Context) (active, removed int, err error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(CASE WHEN removed_at IS NULL THEN 1 END),
            COUNT(CASE WHEN removed_at IS NOT NULL THEN 1 END)
        FROM books`)
	if err := row.Scan(&active, &removed); err != nil {
		return 0, 0, fmt.Errorf("catalog stats: %w", err)
	}
	return active, removed, nil
}

const bookColumns = "id, title, sort_title, path, uuid, checksum, formats, last_modified, updated_at, removed_at"

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		book        Book
		formats     string
		modifiedRaw sql.NullString
		updatedRaw  string
		removedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&book.ID,
		&book.Title,
		&book.SortTitle,
		&book.Path,
		&book.UUID,
		&book.Checksum,
		&formats,
		&modifiedRaw,
		&updatedRaw,
		&removedRaw,
	); err != nil {
		return nil, err
	}

	if formats != "" {
		book.Formats = strings.Split(formats, ",")
	}
	if modifiedRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, modifiedRaw.String); err == nil {
			book.LastModified = t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		book.UpdatedAt = t
	}
	if removedRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, removedRaw.String); err == nil {
			book.RemovedAt = &t
		}
	}
	return &book, nil
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
