package library

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// checksum fingerprints the externally visible state of a book. It covers the
// Calibre identity (uuid), the last_modified stamp Calibre bumps on every
// metadata or file edit, the storage path, and the format file set, so any
// change that could invalidate a derived artifact changes the checksum.
func checksum(book Book, rawModified string) string {
	formats := make([]string, 0, len(book.Formats))
	for _, f := range book.Formats {
		formats = append(formats, fmt.Sprintf("%s:%s:%d", f.Format, f.Name, f.Size))
	}
	sort.Strings(formats)

	h := sha1.New()
	fmt.Fprintf(h, "%d\n%s\n%s\n%s\n%s\n", book.ID, book.UUID, rawModified, book.Path, strings.Join(formats, ","))
	return hex.EncodeToString(h.Sum(nil))
}
