package artifacts

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// DefaultVariant names the parameterless variant of an artifact.
const DefaultVariant = "default"

// Key identifies one derived artifact: a book, a target format, and a hash of
// the variant parameters. Keys are immutable and are the sole lookup handle
// into the store.
type Key struct {
	BookID  int64
	Format  string
	Variant string
}

// NewKey builds a key from a book id, target format, and variant parameters.
// Parameters are canonicalized (sorted key=value pairs) before hashing so
// equivalent requests collapse onto the same key.
func NewKey(bookID int64, format string, params map[string]string) Key {
	return Key{
		BookID:  bookID,
		Format:  strings.ToUpper(strings.TrimSpace(format)),
		Variant: hashParams(params),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.BookID, k.Format, k.Variant)
}

func hashParams(params map[string]string) string {
	if len(params) == 0 {
		return DefaultVariant
	}
	pairs := make([]string, 0, len(params))
	for key, value := range params {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		pairs = append(pairs, key+"="+value)
	}
	if len(pairs) == 0 {
		return DefaultVariant
	}
	sort.Strings(pairs)

	h := sha1.New()
	h.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}
