package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS stores blobs as files under a root directory, fanned out by
// the first two characters of the key (ab/abcdef...) to keep directory
// sizes bounded.
type LocalFS struct {
	root string
}

var _ Store = (*LocalFS)(nil)

// NewLocalFS creates a filesystem blob store rooted at dir, creating
// it if needed.
func NewLocalFS(dir string) (*LocalFS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &LocalFS{root: dir}, nil
}

func (l *LocalFS) path(key string) string {
	fan := "00"
	if len(key) >= 2 {
		fan = key[:2]
	}
	return filepath.Join(l.root, fan, key)
}

// Put implements Store.
func (l *LocalFS) Put(_ context.Context, key string, data []byte) error {
	p := l.path(key)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob: create fanout dir: %w", err)
	}

	// Write-then-rename so a crashed write never leaves a partial blob
	// under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("blob: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("blob: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("blob: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("blob: rename: %w", err)
	}
	return nil
}

// Get implements Store.
func (l *LocalFS) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (l *LocalFS) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete: %w", err)
	}
	return nil
}
