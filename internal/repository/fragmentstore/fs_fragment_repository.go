package fragmentstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	jerrors "github.com/mvtan/jigsaw/internal/errors"
)

// FSFragmentRepository stores fragments as plain files in one directory.
// Fragment files carry raw bytes with no framing or header.
type FSFragmentRepository struct {
	dir string
}

// NewFSFragmentRepository initializes a local fragment repository, creating
// the directory if needed.
func NewFSFragmentRepository(dir string) (*FSFragmentRepository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", abs, err)
	}
	return &FSFragmentRepository{dir: abs}, nil
}

// Write persists one fragment and returns its full path.
func (r *FSFragmentRepository) Write(ctx context.Context, name string, reader io.Reader, quiet bool) (string, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create fragment %s: %w", path, err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write fragment %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close fragment %s: %w", path, err)
	}

	log.Tracef("Wrote fragment %s", path)
	return path, nil
}

// Read opens one fragment for reading.
func (r *FSFragmentRepository) Read(ctx context.Context, name string, quiet bool) (io.ReadCloser, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, jerrors.ErrFragmentNotFound)
		}
		return nil, fmt.Errorf("failed to open fragment %s: %w", path, err)
	}
	return f, nil
}

// Create opens a streaming write handle, used for the key file.
func (r *FSFragmentRepository) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// List returns the names (not paths) of entries ending in suffix.
func (r *FSFragmentRepository) List(ctx context.Context, suffix string) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory %s: %w", r.dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete removes one fragment.
func (r *FSFragmentRepository) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(r.dir, name))
}

// Location returns the absolute store directory.
func (r *FSFragmentRepository) Location() string {
	return r.dir
}

// StorageType returns the store type.
func (r *FSFragmentRepository) StorageType() string {
	return string(FSType)
}
