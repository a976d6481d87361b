package storage

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/telemetry/logger"
)

func testBadgerConfig() BadgerConfig {
	cfg := DefaultBadgerConfig()
	cfg.GCInterval = "1h"
	cfg.ValueLogFileSize = 1 << 20
	cfg.CacheSize = 1 << 20
	cfg.SyncWrites = false
	return cfg
}

// forEachBackend runs fn against a fresh store of every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s BlobStore)) {
	t.Helper()
	backends := []string{BackendFile, BackendBadger}
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig(t.TempDir())
			cfg.Backend = backend
			cfg.Badger = testBadgerConfig()
			s, err := Open(cfg, logger.Discard())
			if err != nil {
				t.Fatalf("Open(%s) error = %v", backend, err)
			}
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func TestBlobStore_WriteRead(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()
		data := []byte("0123456789")

		if err := s.WriteBlob(ctx, "graphs/a", "props_node_age", data); err != nil {
			t.Fatalf("WriteBlob() error = %v", err)
		}

		got, err := s.ReadBlob(ctx, "graphs/a", "props_node_age")
		if err != nil {
			t.Fatalf("ReadBlob() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("ReadBlob() = %q, want %q", got, data)
		}

		if err := s.WriteBlob(ctx, "graphs/a", "props_node_age", []byte("new")); err != nil {
			t.Fatal(err)
		}
		got, _ = s.ReadBlob(ctx, "graphs/a", "props_node_age")
		if string(got) != "new" {
			t.Errorf("after overwrite ReadBlob() = %q, want new", got)
		}
	})
}

func TestBlobStore_ReadRange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()
		if err := s.WriteBlob(ctx, "g", "blob", []byte("0123456789")); err != nil {
			t.Fatal(err)
		}

		tests := []struct {
			name           string
			offset, length int64
			want           string
			wantErr        error
		}{
			{"whole", 0, 0, "0123456789", nil},
			{"middle", 2, 3, "234", nil},
			{"tail", 7, 0, "789", nil},
			{"exact end", 10, 0, "", nil},
			{"past end", 8, 5, "", domain.ErrCorrupt},
			{"offset past end", 11, 0, "", domain.ErrCorrupt},
			{"negative", -1, 2, "", domain.ErrCorrupt},
		}
		for _, tt := range tests {
			got, err := s.ReadRange(ctx, "g", "blob", tt.offset, tt.length)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
				}
				continue
			}
			if err != nil {
				t.Errorf("%s: error = %v", tt.name, err)
				continue
			}
			if string(got) != tt.want {
				t.Errorf("%s: ReadRange() = %q, want %q", tt.name, got, tt.want)
			}
		}
	})
}

func TestBlobStore_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()

		_, err := s.ReadBlob(ctx, "g", "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("ReadBlob(missing) error = %v, want ErrNotFound", err)
		}
		ok, err := s.Exists(ctx, "g", "missing")
		if err != nil || ok {
			t.Errorf("Exists(missing) = (%v, %v), want (false, nil)", ok, err)
		}
		if err := s.Delete(ctx, "g", "missing"); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}
	})
}

func TestBlobStore_ListAndDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()
		for _, name := range []string{"manifest.json", "b", "a"} {
			if err := s.WriteBlob(ctx, "g", name, []byte(name)); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.WriteBlob(ctx, "g/nested", "x", []byte("x")); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteBlob(ctx, "other", "y", []byte("y")); err != nil {
			t.Fatal(err)
		}

		got, err := s.List(ctx, "g")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if diff := cmp.Diff([]string{"a", "b", "manifest.json"}, got); diff != "" {
			t.Errorf("List() mismatch (-want +got):\n%s", diff)
		}

		if err := s.Delete(ctx, "g", "b"); err != nil {
			t.Fatal(err)
		}
		if ok, _ := s.Exists(ctx, "g", "b"); ok {
			t.Error("b should be gone after Delete")
		}

		empty, err := s.List(ctx, "nothing-here")
		if err != nil || len(empty) != 0 {
			t.Errorf("List(empty) = (%v, %v), want empty", empty, err)
		}
	})
}

func TestBlobStore_InvalidNames(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()
		tests := []struct{ dir, name string }{
			{"", "x"},
			{"g", ""},
			{"g", "a/b"},
			{"../escape", "x"},
			{"/abs", "x"},
			{"g//h", "x"},
			{"g", ".."},
		}
		for _, tt := range tests {
			if err := s.WriteBlob(ctx, tt.dir, tt.name, nil); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("WriteBlob(%q, %q) error = %v, want ErrInvalidArgument", tt.dir, tt.name, err)
			}
		}
	})
}

func TestBlobStore_ConcurrentWriters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s BlobStore) {
		ctx := context.Background()
		payloads := [][]byte{
			bytes.Repeat([]byte{'a'}, 4096),
			bytes.Repeat([]byte{'b'}, 4096),
		}

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.WriteBlob(ctx, "g", "manifest.json", payloads[i%2]); err != nil {
					t.Errorf("WriteBlob() error = %v", err)
				}
			}(i)
		}
		wg.Wait()

		got, err := s.ReadBlob(ctx, "g", "manifest.json")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, payloads[0]) && !bytes.Equal(got, payloads[1]) {
			t.Error("concurrent writes produced a torn blob")
		}
	})
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Backend = "pebble"
	if _, err := Open(cfg, logger.Discard()); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Open(pebble) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFileStore_LocalPath(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBlob(context.Background(), "g", "manifest.json", []byte("{}")); err != nil {
		t.Fatal(err)
	}

	p, ok := s.LocalPath("g", "manifest.json")
	if !ok {
		t.Fatal("LocalPath() should resolve a valid name")
	}
	if _, ok := s.LocalPath("../x", "manifest.json"); ok {
		t.Error("LocalPath() should reject an escaping dir")
	}
	if want := root + "/g/manifest.json"; p != want {
		t.Errorf("LocalPath() = %q, want %q", p, want)
	}
}
