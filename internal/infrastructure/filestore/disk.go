// Package filestore stores uploaded operation documents on disk.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fretops/internal/core/id"
)

// Store persists document content and returns the storage path recorded on
// the document row.
type Store interface {
	Save(ctx context.Context, operationID id.ID, filename string, r io.Reader) (path string, size int64, err error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

// DiskStore keeps files under a base directory, one subdirectory per
// operation. Stored names are prefixed with a fresh id so collisions between
// same-named uploads cannot happen.
type DiskStore struct {
	baseDir string
}

// NewDiskStore creates the store, ensuring the base directory exists.
func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{baseDir: baseDir}, nil
}

// Save writes the content and returns the relative storage path.
func (s *DiskStore) Save(ctx context.Context, operationID id.ID, filename string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(s.baseDir, operationID.String())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create operation dir: %w", err)
	}

	name := id.New().String() + "_" + sanitize(filename)
	rel := filepath.Join(operationID.String(), name)

	f, err := os.Create(filepath.Join(s.baseDir, rel))
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("write file: %w", err)
	}
	return rel, size, nil
}

// Open returns the stored content for streaming back to the client.
func (s *DiskStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid storage path %q", path)
	}
	f, err := os.Open(filepath.Join(s.baseDir, clean))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Remove deletes the stored content. Missing files are not an error; the
// database row is the source of truth.
func (s *DiskStore) Remove(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.Clean(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func sanitize(filename string) string {
	name := filepath.Base(filename)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		name = "fichier"
	}
	return name
}
