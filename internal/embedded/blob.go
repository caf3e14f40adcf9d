package embedded

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"carteira/internal/core"
)

// BlobStore is the durable key-value layer snapshots are persisted to.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FileBlobStore keeps blobs as files under a directory, one per key.
type FileBlobStore struct {
	dir string
}

func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

// Put writes through a temp file and renames, so a crash mid-write never
// leaves a truncated blob behind.
func (f *FileBlobStore) Put(_ context.Context, key string, data []byte) error {
	target := f.pathFor(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit blob %s: %w", key, err)
	}
	return nil
}

func (f *FileBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.pathFor(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: blob %s", core.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

func (f *FileBlobStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

func (f *FileBlobStore) pathFor(key string) string {
	return filepath.Join(f.dir, key+".blob")
}
