package catalog

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY,
        title TEXT NOT NULL,
        sort_title TEXT NOT NULL DEFAULT '',
        path TEXT NOT NULL DEFAULT '',
        uuid TEXT NOT NULL DEFAULT '',
        checksum TEXT NOT NULL,
        formats TEXT NOT NULL DEFAULT '',
        last_modified TEXT,
        updated_at TEXT NOT NULL,
        removed_at TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_books_removed_at ON books(removed_at)`,
}

func (s *Store) applyMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply catalog migration: %w", err)
		}
	}
	return nil
}
