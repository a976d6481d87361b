package rdg

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/oklog/ulid/v2"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/topology"
)

const viewBlobPrefix = "view_"

// RDG is an open snapshot. Its manifest is always at CurrentVersion.
//
// The manifest pointer is swapped on every rewrite; a *Manifest obtained
// from Manifest() is never modified afterwards.
type RDG struct {
	dir    string
	store  storage.BlobStore
	mem    memory.Allocator
	logger logger.Logger

	// mu serializes manifest rewrites.
	mu       sync.Mutex
	manifest atomic.Pointer[Manifest]

	topoMu sync.Mutex
	topo   *topology.Topology
}

// Option configures an RDG handle.
type Option func(*RDG)

// WithAllocator sets the Arrow allocator used for property columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(r *RDG) {
		if mem != nil {
			r.mem = mem
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *RDG) {
		if l != nil {
			r.logger = l
		}
	}
}

// ReadManifest reads the manifest blob of dir.
func ReadManifest(ctx context.Context, store storage.BlobStore, dir string) (*Manifest, error) {
	data, err := store.ReadBlob(ctx, dir, ManifestName)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// WriteManifest replaces the manifest blob of dir.
func WriteManifest(ctx context.Context, store storage.BlobStore, dir string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return store.WriteBlob(ctx, dir, ManifestName, data)
}

// Open returns a handle over dir using an already migrated manifest.
func Open(store storage.BlobStore, dir string, m *Manifest, opts ...Option) (*RDG, error) {
	if m.Version != CurrentVersion {
		return nil, domain.ErrUnsupportedVersion.WithDetailf("open %s: manifest version %d, want %d", dir, m.Version, CurrentVersion)
	}
	if err := m.CheckNames(); err != nil {
		return nil, err
	}

	r := &RDG{
		dir:    dir,
		store:  store,
		mem:    memory.DefaultAllocator,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.Named(r.logger, "rdg").With("rdg_dir", dir)
	r.manifest.Store(m.Clone())
	return r, nil
}

// Dir returns the rdg dir.
func (r *RDG) Dir() string {
	return r.dir
}

// Store returns the underlying blob store.
func (r *RDG) Store() storage.BlobStore {
	return r.store
}

// Manifest returns the current manifest. Treat it as read-only.
func (r *RDG) Manifest() *Manifest {
	return r.manifest.Load()
}

func (r *RDG) read(ctx context.Context, loc BlobLocation) ([]byte, error) {
	return r.store.ReadRange(ctx, r.dir, loc.Path, loc.Offset, loc.Length)
}

// Topology loads the base topology once and returns the same instance on
// every later call. A failed load is retried on the next call. Its edge
// types are the edge entity type ids.
func (r *RDG) Topology(ctx context.Context) (*topology.Topology, error) {
	r.topoMu.Lock()
	defer r.topoMu.Unlock()

	if r.topo != nil {
		return r.topo, nil
	}

	m := r.Manifest()
	data, err := r.read(ctx, m.Topology)
	if err != nil {
		return nil, err
	}
	t, err := topology.DecodeTopology(data)
	if err != nil {
		return nil, err
	}
	if uint64(t.NumNodes()) != m.NumNodes || uint64(t.NumEdges()) != m.NumEdges {
		return nil, domain.ErrCorrupt.WithDetailf("topology has %d nodes, %d edges; manifest says %d, %d",
			t.NumNodes(), t.NumEdges(), m.NumNodes, m.NumEdges)
	}
	if m.EdgeEntityTypeIDs != nil {
		if t.EdgeTypes, err = r.EntityTypeIDs(ctx, EdgeEntity); err != nil {
			return nil, err
		}
	}
	r.topo = t
	return t, nil
}

// LoadProperty reads one property column. An unknown name is
// domain.ErrNotFound; a column whose shape disagrees with the manifest
// counts is domain.ErrCorrupt.
func (r *RDG) LoadProperty(ctx context.Context, kind EntityKind, name string) (arrow.Table, error) {
	m := r.Manifest()
	info, ok := m.Property(kind, name)
	if !ok {
		return nil, domain.ErrNotFound.WithDetailf("%s property %q in %s", kind, name, r.dir)
	}
	data, err := r.read(ctx, info.Location)
	if err != nil {
		return nil, err
	}
	tbl, err := DecodeColumn(r.mem, data, name, m.NumEntities(kind))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("property loaded", "kind", kind.String(), "name", name, "rows", tbl.NumRows())
	return tbl, nil
}

// EntityTypeIDs reads the entity type id array of kind, widened to 32 bits.
func (r *RDG) EntityTypeIDs(ctx context.Context, kind EntityKind) ([]uint32, error) {
	m := r.Manifest()
	loc := m.EntityTypeIDs(kind)
	if loc == nil {
		return nil, domain.ErrNotFound.WithDetailf("%s entity type ids in %s", kind, r.dir)
	}
	data, err := r.read(ctx, *loc)
	if err != nil {
		return nil, err
	}
	return DecodeTypeIDs(r.mem, data, m.EntityTypeIDWidth, m.NumEntities(kind))
}

// LoadView reads the persisted view of kind. It reports false when no view
// with the current layout is recorded. A recorded view whose counts
// disagree with base is domain.ErrCorrupt.
func (r *RDG) LoadView(ctx context.Context, kind topology.Kind, base *topology.Topology) (*topology.View, bool, error) {
	info, ok := r.Manifest().View(kind)
	if !ok || info.LayoutVersion != topology.LayoutVersion {
		return nil, false, nil
	}
	if info.NumNodes != uint64(base.NumNodes()) || info.NumEdges != uint64(base.NumEdges()) {
		return nil, false, domain.ErrCorrupt.WithDetailf("view %s records %d nodes, %d edges; base has %d, %d",
			kind, info.NumNodes, info.NumEdges, base.NumNodes(), base.NumEdges())
	}

	data, err := r.read(ctx, info.Location)
	if err != nil {
		return nil, false, err
	}
	v, err := topology.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	if v.Kind != kind || !v.Matches(base) {
		return nil, false, domain.ErrCorrupt.WithDetailf("view blob %s holds %s with %d nodes, %d edges; base has %d, %d",
			info.Location.Path, v.Kind, v.NumNodes, v.NumEdges, base.NumNodes(), base.NumEdges())
	}
	return v, true, nil
}

// RecordView writes v to a new blob and records it in the manifest, which
// is rewritten before RecordView returns. A view previously recorded for
// the same kind is replaced and its blob deleted.
func (r *RDG) RecordView(ctx context.Context, v *topology.View) (ViewInfo, error) {
	var buf bytes.Buffer
	if err := v.Encode(&buf); err != nil {
		return ViewInfo{}, err
	}

	name, err := newViewBlobName(v.Kind)
	if err != nil {
		return ViewInfo{}, err
	}
	if err := r.store.WriteBlob(ctx, r.dir, name, buf.Bytes()); err != nil {
		return ViewInfo{}, err
	}

	info := ViewInfo{
		Kind:          v.Kind,
		LayoutVersion: topology.LayoutVersion,
		NumNodes:      uint64(v.NumNodes),
		NumEdges:      uint64(v.NumEdges),
		Location:      BlobLocation{Path: name},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.Manifest()
	next := prev.WithView(info)
	if err := WriteManifest(ctx, r.store, r.dir, next); err != nil {
		if derr := r.store.Delete(ctx, r.dir, name); derr != nil {
			r.logger.Warn("failed to remove unrecorded view blob", "name", name, "error", derr)
		}
		return ViewInfo{}, err
	}
	r.manifest.Store(next)

	if old, ok := prev.View(v.Kind); ok && old.Location.Path != name {
		if err := r.store.Delete(ctx, r.dir, old.Location.Path); err != nil {
			r.logger.Warn("failed to remove replaced view blob", "name", old.Location.Path, "error", err)
		}
	}
	r.logger.Info("view persisted", "kind", v.Kind.String(), "blob", name, "size", buf.Len())
	return info, nil
}

// Persist writes the current manifest. Used after a migration to make the
// upgraded manifest durable.
func (r *RDG) Persist(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return WriteManifest(ctx, r.store, r.dir, r.Manifest())
}

// Stale reports whether the manifest in the store differs from the one
// this handle serves. Rewrites made through the handle are never stale.
func (r *RDG) Stale(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	onDisk, err := ReadManifest(ctx, r.store, r.dir)
	if err != nil {
		return false, err
	}
	a, err := onDisk.Marshal()
	if err != nil {
		return false, err
	}
	b, err := r.Manifest().Marshal()
	if err != nil {
		return false, err
	}
	return !bytes.Equal(a, b), nil
}

func newViewBlobName(kind topology.Kind) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("rdg: generate view blob id: %w", err)
	}
	return viewBlobPrefix + kind.String() + "_" + id.String(), nil
}

// ViewBlobTime returns when a view blob was written, from its name.
func ViewBlobTime(name string) (time.Time, error) {
	i := strings.LastIndexByte(name, '_')
	if !strings.HasPrefix(name, viewBlobPrefix) || i < 0 {
		return time.Time{}, errors.New("rdg: not a view blob name")
	}
	id, err := ulid.Parse(name[i+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("rdg: parse view blob id: %w", err)
	}
	return ulid.Time(id.Time()), nil
}
