package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/darabos/katana/internal/core/domain"
)

// BlobStore reads and writes named blobs grouped by rdg dir.
//
// Implementations must be safe for concurrent use. A successful WriteBlob
// is atomic: readers see either the previous content or the new content.
type BlobStore interface {
	// ReadBlob returns the whole blob.
	ReadBlob(ctx context.Context, dir, name string) ([]byte, error)

	// ReadRange returns length bytes starting at offset. length 0 reads to
	// the end of the blob.
	ReadRange(ctx context.Context, dir, name string, offset, length int64) ([]byte, error)

	// WriteBlob creates or replaces a blob.
	WriteBlob(ctx context.Context, dir, name string, data []byte) error

	// Exists reports whether the blob is present.
	Exists(ctx context.Context, dir, name string) (bool, error)

	// List returns the blob names in dir, sorted.
	List(ctx context.Context, dir string) ([]string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, dir, name string) error

	// Close releases the store.
	Close() error
}

// Locator is implemented by stores whose blobs are plain files, so callers
// can watch them for changes.
type Locator interface {
	LocalPath(dir, name string) (string, bool)
}

// validateName checks a blob name and an rdg dir. Names are flat; dirs are
// slash-separated relative paths.
func validateName(dir, name string) error {
	if err := validateDir(dir); err != nil {
		return err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return domain.ErrInvalidArgument.WithDetailf("invalid blob name %q", name)
	}
	return nil
}

func validateDir(dir string) error {
	if dir == "" || path.IsAbs(dir) || strings.Contains(dir, `\`) {
		return domain.ErrInvalidArgument.WithDetailf("invalid rdg dir %q", dir)
	}
	for _, elem := range strings.Split(dir, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return domain.ErrInvalidArgument.WithDetailf("invalid rdg dir %q", dir)
		}
	}
	return nil
}

// sliceRange applies a byte range to a fully read blob.
func sliceRange(data []byte, dir, name string, offset, length int64) ([]byte, error) {
	size := int64(len(data))
	if offset < 0 || length < 0 || offset > size {
		return nil, rangeError(dir, name, offset, length, size)
	}
	if length == 0 {
		return data[offset:], nil
	}
	if offset+length > size {
		return nil, rangeError(dir, name, offset, length, size)
	}
	return data[offset : offset+length], nil
}

func rangeError(dir, name string, offset, length, size int64) error {
	return domain.ErrCorrupt.WithDetailf("blob %s/%s: range [%d,+%d) outside size %d", dir, name, offset, length, size)
}

func notFound(dir, name string) error {
	return domain.ErrNotFound.WithDetailf("blob %s/%s", dir, name)
}

func ioFailure(op, dir, name string, err error) error {
	return domain.ErrIOFailure.WithDetails(fmt.Sprintf("%s %s/%s", op, dir, name)).WithCause(err)
}
