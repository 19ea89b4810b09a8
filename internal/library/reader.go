package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnreadable indicates the Calibre metadata database could not be opened or scanned.
var ErrUnreadable = errors.New("calibre library unreadable")

// FormatFile describes one stored format of a book inside the Calibre library.
type FormatFile struct {
	Format string
	Name   string
	Size   int64
}

// Book is a read-only snapshot of one Calibre book row plus its format files.
type Book struct {
	ID           int64
	Title        string
	Sort         string
	Path         string
	UUID         string
	LastModified time.Time
	Checksum     string
	Formats      []FormatFile
}

// HasFormat reports whether the book carries the given source format.
func (b Book) HasFormat(format string) bool {
	format = NormalizeFormat(format)
	for _, f := range b.Formats {
		if f.Format == format {
			return true
		}
	}
	return false
}

// FormatNames returns the book's formats in sorted order.
func (b Book) FormatNames() []string {
	names := make([]string, 0, len(b.Formats))
	for _, f := range b.Formats {
		names = append(names, f.Format)
	}
	sort.Strings(names)
	return names
}

// Reader provides read-only access to a Calibre metadata.db.
type Reader struct {
	db   *sql.DB
	path string
	root string
}

// Open connects to the metadata database in read-only mode. The database is
// owned by Calibre; bindery never writes to it.
func Open(libraryDir string) (*Reader, error) {
	dbPath := filepath.Join(libraryDir, "metadata.db")
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrUnreadable, dbPath, err)
	}

	dsn := "file:" + url.PathEscape(dbPath) + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnreadable, dbPath, err)
	}

	return &Reader{db: db, path: dbPath, root: libraryDir}, nil
}

// Close closes the underlying database connection.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Path returns the metadata.db location.
func (r *Reader) Path() string {
	return r.path
}

// Snapshot reads the full book set ordered by identifier. Failures wrap
// ErrUnreadable so callers can treat them as reconciliation failures.
func (r *Reader) Snapshot(ctx context.Context) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, title, COALESCE(sort, ''), path, COALESCE(uuid, ''), COALESCE(last_modified, '')
        FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query books: %w", ErrUnreadable, err)
	}
	defer rows.Close()

	var books []Book
	index := make(map[int64]int)
	rawModified := make(map[int64]string)
	for rows.Next() {
		var (
			book        Book
			modifiedRaw string
		)
		if err := rows.Scan(&book.ID, &book.Title, &book.Sort, &book.Path, &book.UUID, &modifiedRaw); err != nil {
			return nil, fmt.Errorf("%w: scan book: %w", ErrUnreadable, err)
		}
		book.LastModified = parseCalibreTime(modifiedRaw)
		rawModified[book.ID] = modifiedRaw
		index[book.ID] = len(books)
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate books: %w", ErrUnreadable, err)
	}

	formatRows, err := r.db.QueryContext(ctx, `
        SELECT book, format, name, uncompressed_size FROM data ORDER BY book, format`)
	if err != nil {
		return nil, fmt.Errorf("%w: query formats: %w", ErrUnreadable, err)
	}
	defer formatRows.Close()

	for formatRows.Next() {
		var (
			bookID int64
			file   FormatFile
		)
		if err := formatRows.Scan(&bookID, &file.Format, &file.Name, &file.Size); err != nil {
			return nil, fmt.Errorf("%w: scan format: %w", ErrUnreadable, err)
		}
		file.Format = NormalizeFormat(file.Format)
		if i, ok := index[bookID]; ok {
			books[i].Formats = append(books[i].Formats, file)
		}
	}
	if err := formatRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate formats: %w", ErrUnreadable, err)
	}

	for i := range books {
		books[i].Checksum = checksum(books[i], rawModified[books[i].ID])
	}
	return books, nil
}

// Lookup reads a single book and its formats. Returns nil when the book does
// not exist, which usually means the catalog has drifted from the library.
func (r *Reader) Lookup(ctx context.Context, id int64) (*Book, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, title, COALESCE(sort, ''), path, COALESCE(uuid, ''), COALESCE(last_modified, '')
        FROM books WHERE id = ?`, id)

	var (
		book        Book
		modifiedRaw string
	)
	err := row.Scan(&book.ID, &book.Title, &book.Sort, &book.Path, &book.UUID, &modifiedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan book %d: %w", ErrUnreadable, id, err)
	}
	book.LastModified = parseCalibreTime(modifiedRaw)

	rows, err := r.db.QueryContext(ctx, `
        SELECT format, name, uncompressed_size FROM data WHERE book = ? ORDER BY format`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: query formats for %d: %w", ErrUnreadable, id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var file FormatFile
		if err := rows.Scan(&file.Format, &file.Name, &file.Size); err != nil {
			return nil, fmt.Errorf("%w: scan format: %w", ErrUnreadable, err)
		}
		file.Format = NormalizeFormat(file.Format)
		book.Formats = append(book.Formats, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate formats: %w", ErrUnreadable, err)
	}

	book.Checksum = checksum(book, modifiedRaw)
	return &book, nil
}

// SourcePath resolves the on-disk file backing the given format of a book.
func (r *Reader) SourcePath(book Book, format string) (string, bool) {
	format = NormalizeFormat(format)
	for _, f := range book.Formats {
		if f.Format == format {
			name := f.Name + "." + strings.ToLower(format)
			return filepath.Join(r.root, filepath.FromSlash(book.Path), name), true
		}
	}
	return "", false
}

// CoverPath resolves the cover.jpg Calibre keeps beside each book. The
// second return reports whether the file exists.
func (r *Reader) CoverPath(book Book) (string, bool) {
	path := filepath.Join(r.root, filepath.FromSlash(book.Path), "cover.jpg")
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// NormalizeFormat canonicalizes a format token (upper-case, no leading dot).
func NormalizeFormat(format string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// Calibre stores timestamps as text in a handful of layouts.
func parseCalibreTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
