package catalog

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Book is a cached catalog entry mirroring one Calibre book.
type Book struct {
	ID           int64
	Title        string
	SortTitle    string
	Path         string
	UUID         string
	Checksum     string
	Formats      []string
	LastModified time.Time
	UpdatedAt    time.Time
	RemovedAt    *time.Time
}

// Removed reports whether the book carries a tombstone.
func (b Book) Removed() bool {
	return b.RemovedAt != nil
}

var titleCaser = cases.Title(language.English, cases.NoLower)

var leadingArticles = []string{"the ", "a ", "an "}

// SortTitleFor derives a sort title when Calibre's own sort field is empty:
// leading English articles move to the end, matching Calibre's convention.
func SortTitleFor(title, calibreSort string) string {
	if trimmed := strings.TrimSpace(calibreSort); trimmed != "" {
		return trimmed
	}
	trimmed := strings.TrimSpace(title)
	lower := strings.ToLower(trimmed)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) && len(trimmed) > len(article) {
			rest := trimmed[len(article):]
			return titleCaser.String(rest) + ", " + strings.TrimSpace(trimmed[:len(article)])
		}
	}
	return trimmed
}
