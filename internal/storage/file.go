package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/telemetry/logger"
)

const tempSuffix = ".tmp"

// FileStore keeps each blob in its own file under Root.
type FileStore struct {
	root   string
	logger logger.Logger
}

// NewFileStore opens a file store rooted at root, creating it if needed.
func NewFileStore(root string, log logger.Logger) (*FileStore, error) {
	if root == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("file store: root is required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, domain.ErrIOFailure.WithDetails("file store: create root").WithCause(err)
	}
	return &FileStore{root: root, logger: logger.Named(log, "filestore")}, nil
}

func (s *FileStore) path(dir, name string) string {
	return filepath.Join(s.root, filepath.FromSlash(dir), name)
}

// LocalPath implements Locator.
func (s *FileStore) LocalPath(dir, name string) (string, bool) {
	if validateName(dir, name) != nil {
		return "", false
	}
	return s.path(dir, name), true
}

// ReadBlob implements BlobStore.
func (s *FileStore) ReadBlob(ctx context.Context, dir, name string) ([]byte, error) {
	return s.ReadRange(ctx, dir, name, 0, 0)
}

// ReadRange implements BlobStore.
func (s *FileStore) ReadRange(ctx context.Context, dir, name string, offset, length int64) ([]byte, error) {
	if err := validateName(dir, name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(dir, name)
		}
		return nil, ioFailure("open", dir, name, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, ioFailure("stat", dir, name, err)
	}
	size := stat.Size()
	if offset < 0 || length < 0 || offset > size || (length > 0 && offset+length > size) {
		return nil, rangeError(dir, name, offset, length, size)
	}
	if length == 0 {
		length = size - offset
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, length), buf); err != nil {
		return nil, ioFailure("read", dir, name, err)
	}
	return buf, nil
}

// WriteBlob implements BlobStore. The data is written to a temp file in the
// same directory, synced and renamed over the target.
func (s *FileStore) WriteBlob(ctx context.Context, dir, name string, data []byte) error {
	if err := validateName(dir, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.path(dir, name)
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return ioFailure("mkdir", dir, name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), name+".*"+tempSuffix)
	if err != nil {
		return ioFailure("create temp", dir, name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ioFailure("write", dir, name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ioFailure("sync", dir, name, err)
	}
	if err := tmp.Close(); err != nil {
		return ioFailure("close", dir, name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return ioFailure("rename", dir, name, err)
	}

	s.logger.Debug("blob written", "rdg_dir", dir, "name", name, "size", len(data))
	return nil
}

// Exists implements BlobStore.
func (s *FileStore) Exists(ctx context.Context, dir, name string) (bool, error) {
	if err := validateName(dir, name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, ioFailure("stat", dir, name, err)
}

// List implements BlobStore. Temp files of writes in progress are skipped.
func (s *FileStore) List(ctx context.Context, dir string) ([]string, error) {
	if err := validateDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioFailure("list", dir, "", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements BlobStore.
func (s *FileStore) Delete(ctx context.Context, dir, name string) error {
	if err := validateName(dir, name); err != nil {
		return err
	}
	if err := os.Remove(s.path(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioFailure("delete", dir, name, err)
	}
	return nil
}

// Close implements BlobStore.
func (s *FileStore) Close() error {
	return nil
}

var (
	_ BlobStore = (*FileStore)(nil)
	_ Locator   = (*FileStore)(nil)
)
