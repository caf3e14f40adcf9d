package storage

import (
	"context"
	"fmt"
	"os"
)

// VacuumInto writes a compact, consistent copy of the database to path.
// SQLite's VACUUM INTO runs inside its own transaction, so the copy is a
// valid snapshot even while the pool stays open.
func (s *Store) VacuumInto(ctx context.Context, path string) error {
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear snapshot target: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return nil
}
