// Package localfs stores uploaded policy files in a flat local directory.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/policy-reviewer/internal/core/domain"
)

const DefaultDir = "./data/uploaded"

type Storage struct {
	dir string
}

func New(dir string) (*Storage, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Save replaces the file stored under key. The upload is staged in a
// temporary file and renamed into place once fully written.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if err := writeAll(tmp, data); err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func writeAll(f *os.File, data io.Reader) error {
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open "+key, err)
	case err != nil:
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// resolve accepts bare file names only. Hidden names are reserved for
// staged uploads.
func (s *Storage) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve storage key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.dir, key), nil
}
