package testsupport

import (
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// SeedBook describes one book to place in a fake Calibre library.
type SeedBook struct {
	Title   string
	Formats []string
}

// Library is a writable fake Calibre library rooted at Dir. Tests use it to
// drive the reconciler through add, change, and remove scenarios.
type Library struct {
	t   testing.TB
	Dir string
	db  *sql.DB
}

// BuildLibrary creates a metadata.db plus on-disk format files under dir and
// returns a handle for further mutations. The schema covers only the tables
// bindery reads.
func BuildLibrary(t testing.TB, dir string, books ...SeedBook) *Library {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatalf("open metadata.db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	schema := []string{
		`CREATE TABLE books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL DEFAULT 'Unknown',
            sort TEXT,
            path TEXT NOT NULL DEFAULT '',
            uuid TEXT,
            last_modified TEXT NOT NULL DEFAULT '2000-01-01 00:00:00+00:00',
            timestamp TEXT
        )`,
		`CREATE TABLE data (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            book INTEGER NOT NULL,
            format TEXT NOT NULL,
            name TEXT NOT NULL,
            uncompressed_size INTEGER NOT NULL DEFAULT 0
        )`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create calibre schema: %v", err)
		}
	}

	lib := &Library{t: t, Dir: dir, db: db}
	for _, book := range books {
		lib.AddBook(book.Title, book.Formats...)
	}
	return lib
}

// AddBook inserts a book with the given formats, writing a small file per
// format under the book's directory. Returns the new book id.
func (l *Library) AddBook(title string, formats ...string) int64 {
	l.t.Helper()

	slug := slugify(title)
	bookPath := filepath.Join("Author", slug)
	uid := fmt.Sprintf("uuid-%s-%d", slug, time.Now().UnixNano())

	res, err := l.db.Exec(
		`INSERT INTO books (title, sort, path, uuid, last_modified) VALUES (?, ?, ?, ?, ?)`,
		title,
		title,
		strings.ReplaceAll(bookPath, string(os.PathSeparator), "/"),
		uid,
		calibreNow(),
	)
	if err != nil {
		l.t.Fatalf("insert book %q: %v", title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		l.t.Fatalf("book id for %q: %v", title, err)
	}

	for _, format := range formats {
		l.AddFormat(id, format)
	}
	return id
}

// AddFormat attaches a format file to an existing book and bumps its
// last_modified timestamp.
func (l *Library) AddFormat(bookID int64, format string) {
	l.t.Helper()

	format = strings.ToUpper(strings.TrimSpace(format))
	name, dir := l.bookFile(bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.t.Fatalf("mkdir book dir: %v", err)
	}
	content := []byte("fake " + format + " payload for book\n")
	file := filepath.Join(dir, name+"."+strings.ToLower(format))
	if err := os.WriteFile(file, content, 0o644); err != nil {
		l.t.Fatalf("write format file: %v", err)
	}

	if _, err := l.db.Exec(
		`INSERT INTO data (book, format, name, uncompressed_size) VALUES (?, ?, ?, ?)`,
		bookID, format, name, len(content),
	); err != nil {
		l.t.Fatalf("insert format row: %v", err)
	}
	l.Touch(bookID)
}

// Touch advances a book's last_modified so its snapshot checksum changes.
func (l *Library) Touch(bookID int64) {
	l.t.Helper()

	if _, err := l.db.Exec(
		`UPDATE books SET last_modified = ? WHERE id = ?`,
		calibreNow(),
		bookID,
	); err != nil {
		l.t.Fatalf("touch book %d: %v", bookID, err)
	}
}

// WriteCover places a JPEG cover beside the book's format files, the way
// Calibre stores one cover.jpg per book directory.
func (l *Library) WriteCover(bookID int64, width, height int) {
	l.t.Helper()

	_, dir := l.bookFile(bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.t.Fatalf("mkdir book dir: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	file, err := os.Create(filepath.Join(dir, "cover.jpg"))
	if err != nil {
		l.t.Fatalf("create cover: %v", err)
	}
	defer file.Close()
	if err := jpeg.Encode(file, img, nil); err != nil {
		l.t.Fatalf("encode cover: %v", err)
	}
}

// RemoveBook deletes a book and its format rows, simulating a Calibre delete.
func (l *Library) RemoveBook(bookID int64) {
	l.t.Helper()

	if _, err := l.db.Exec(`DELETE FROM data WHERE book = ?`, bookID); err != nil {
		l.t.Fatalf("delete format rows for %d: %v", bookID, err)
	}
	if _, err := l.db.Exec(`DELETE FROM books WHERE id = ?`, bookID); err != nil {
		l.t.Fatalf("delete book %d: %v", bookID, err)
	}
}

func (l *Library) bookFile(bookID int64) (name, dir string) {
	l.t.Helper()

	var path string
	if err := l.db.QueryRow(`SELECT path FROM books WHERE id = ?`, bookID).Scan(&path); err != nil {
		l.t.Fatalf("lookup book path %d: %v", bookID, err)
	}
	name = filepath.Base(filepath.FromSlash(path))
	dir = filepath.Join(l.Dir, filepath.FromSlash(path))
	return name, dir
}

var seedClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// calibreNow returns a strictly increasing timestamp in Calibre's text layout
// so consecutive mutations always produce distinct checksums.
func calibreNow() string {
	seedClock = seedClock.Add(time.Second)
	return seedClock.Format("2006-01-02 15:04:05+00:00")
}

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return strings.Trim(slug, "-")
}
