// Package embedded provides an offline relational store: the full schema on
// a local SQLite file, with explicit serialize-to-bytes and
// restore-from-bytes persisted through a durable blob layer. All persistence
// operations are serialized through one mutex so an autosave can never race
// an explicit save or restore.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/storage"
)

type Store struct {
	*storage.Store

	mu    sync.Mutex
	path  string
	blobs BlobStore
	key   string
}

// Open prepares the working database under dir, restoring the last persisted
// snapshot when the blob layer has one.
func Open(ctx context.Context, dir string, blobs BlobStore, key string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	path := filepath.Join(dir, key+".db")

	data, err := blobs.Get(ctx, key)
	switch {
	case err == nil:
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	case errors.Is(err, core.ErrNotFound):
		// First run, start from an empty database.
	default:
		return nil, err
	}

	inner, err := storage.New(path)
	if err != nil {
		return nil, err
	}

	return &Store{
		Store: inner,
		path:  path,
		blobs: blobs,
		key:   key,
	}, nil
}

// SerializeToBytes exports a consistent snapshot of the database.
func (s *Store) SerializeToBytes(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializeLocked(ctx)
}

func (s *Store) serializeLocked(ctx context.Context) ([]byte, error) {
	snapshot := s.path + ".snapshot"
	defer os.Remove(snapshot)

	if err := s.Store.VacuumInto(ctx, snapshot); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// RestoreFromBytes replaces the working database with the given snapshot.
// The previous handle is closed before the file is overwritten.
func (s *Store) RestoreFromBytes(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close before restore: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}

	inner, err := storage.New(s.path)
	if err != nil {
		return fmt.Errorf("reopen restored database: %w", err)
	}
	s.Store = inner
	return nil
}

// Save serializes the database and persists it to the blob layer.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.serializeLocked(ctx)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.key, data); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Persisted database snapshot",
		"key", s.key, "bytes", len(data))
	return nil
}

// RunAutosave persists periodically until the context is canceled, with one
// final save on the way out. Errors are logged, not fatal: the next tick
// retries.
func (s *Store) RunAutosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				slog.ErrorContext(ctx, "Autosave failed", "key", s.key, "error", err)
			}
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Save(saveCtx); err != nil {
				slog.ErrorContext(saveCtx, "Final save failed", "key", s.key, "error", err)
			}
			cancel()
			return
		}
	}
}
