package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cartoforge/tilecutter/internal/domain"
)

// LocalStorage implements ObjectStorage over a local directory, mainly
// for development and air-gapped deployments.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a local storage adapter rooted at the given
// directory.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, &domain.StoreError{Path: root, Op: "mkdir", Err: err}
	}
	return &LocalStorage{root: root}, nil
}

// Upload copies the local file under the storage root.
func (s *LocalStorage) Upload(_ context.Context, localPath, key string) error {
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return &domain.StoreError{Path: dest, Op: "mkdir", Err: err}
	}

	src, err := os.Open(localPath) //#nosec G304 -- localPath is a controlled local path
	if err != nil {
		return &domain.StoreError{Path: localPath, Op: "open", Err: err}
	}
	defer func() { _ = src.Close() }()

	// Copy through a temp file so a crash never leaves a half-written
	// database under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return &domain.StoreError{Path: dest, Op: "create", Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return &domain.StoreError{Path: dest, Op: "copy", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StoreError{Path: dest, Op: "close", Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &domain.StoreError{Path: dest, Op: "rename", Err: err}
	}
	return nil
}

// Exists checks if a file exists under the storage root.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
