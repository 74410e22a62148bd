package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Store keeps staged photos under their generated file names.
type Store interface {
	// Ready fails with ErrUploadDirMissing when nothing can be stored.
	Ready(ctx context.Context) error
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) error
	// Remove deletes name; a missing object is not an error.
	Remove(ctx context.Context, name string) error
}

// DirStore writes into a local directory that is served as static files.
type DirStore struct {
	Dir string // must already exist
}

func (s *DirStore) Ready(context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil || !info.IsDir() {
		return ErrUploadDirMissing
	}
	return nil
}

// Put refuses to overwrite an existing file.
func (s *DirStore) Put(_ context.Context, name, _ string, r io.Reader, _ int64) error {
	dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *DirStore) Remove(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
