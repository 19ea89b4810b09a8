package convert

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat marks requests for a source/target pair no
	// registered backend handles, or whose handlers are unavailable.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrConversionFailed marks a backend invocation that ran but produced no
	// usable output.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrSourceUnavailable marks a conversion whose source file is missing or
	// unreadable. Usually means the catalog has drifted from the library.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNotFound marks lookups for books or artifacts that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes backend context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, backend, operation, message string, err error) error {
	detail := buildDetail(backend, operation, message)
	if marker == nil {
		marker = ErrConversionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether a failed conversion is worth retrying on a later
// request. Unsupported pairs and missing books never heal on their own;
// missing source files may reappear after the next reconcile.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

func buildDetail(backend, operation, message string) string {
	parts := make([]string, 0, 3)
	if backend = strings.TrimSpace(backend); backend != "" {
		parts = append(parts, backend)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "conversion failure"
	}
	return strings.Join(parts, ": ")
}
