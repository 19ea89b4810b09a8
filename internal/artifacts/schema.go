package artifacts

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
        key TEXT PRIMARY KEY,
        book_id INTEGER NOT NULL,
        format TEXT NOT NULL,
        variant TEXT NOT NULL,
        path TEXT NOT NULL,
        source_checksum TEXT NOT NULL,
        size INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_book_id ON artifacts(book_id)`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status)`,
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply artifact migration: %w", err)
		}
	}
	return nil
}
