// Package storage keeps the raw bytes of uploaded documents on the local
// filesystem so the background worker can re-read them at ingest time.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes r to a new uuid-named file and returns the stored path
// relative to the store's directory.
func (s *FileStore) Save(r io.Reader, ext string) (string, int64, error) {
	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create stored file failed: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write stored file failed: %w", err)
	}
	return name, n, nil
}

func (s *FileStore) Open(storedPath string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, storedPath))
	if err != nil {
		return nil, fmt.Errorf("open stored file failed: %w", err)
	}
	return f, nil
}

func (s *FileStore) Remove(storedPath string) error {
	if storedPath == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, storedPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file failed: %w", err)
	}
	return nil
}
