package property

import (
	"context"
	"slices"
	"strconv"

	"github.com/apache/arrow/go/v15/arrow"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/pkg/cache"
	"github.com/darabos/katana/pkg/cmap"
)

// Key identifies one property column.
type Key struct {
	Kind   rdg.EntityKind
	RDGDir string
	Name   string
}

// CacheKey implements cache.Key.
func (k Key) CacheKey() string {
	return k.Kind.String() + ":" + strconv.Quote(k.RDGDir) + ":" + strconv.Quote(k.Name)
}

func (k Key) String() string {
	return k.Kind.String() + " property " + strconv.Quote(k.Name) + " of " + k.RDGDir
}

// Loader reads a property column from storage.
type Loader interface {
	LoadProperty(ctx context.Context, kind rdg.EntityKind, rdgDir, name string) (arrow.Table, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, kind rdg.EntityKind, rdgDir, name string) (arrow.Table, error)

// LoadProperty implements Loader.
func (f LoaderFunc) LoadProperty(ctx context.Context, kind rdg.EntityKind, rdgDir, name string) (arrow.Table, error) {
	return f(ctx, kind, rdgDir, name)
}

type scope struct {
	kind rdg.EntityKind
	dir  string
}

// Store serves property columns through a KeyedBuilderCache.
//
// Tables handed out are shared and immutable; callers must not Release
// them.
type Store struct {
	loader Loader
	cache  *cache.Cache[Key, arrow.Table]

	// registered maps a scope to its name set. Sets are replaced, never
	// modified, so a set read outside the shard lock stays consistent.
	registered *cmap.Map[scope, map[string]struct{}]
}

// NewStore creates a store holding at most capacity columns.
func NewStore(loader Loader, capacity int, opts ...cache.Option) (*Store, error) {
	if loader == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("property store needs a loader")
	}
	s := &Store{
		loader:     loader,
		registered: cmap.New[scope, map[string]struct{}](),
	}
	opts = append([]cache.Option{cache.WithName("property")}, opts...)
	c, err := cache.New(capacity, s.load, opts...)
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

func (s *Store) load(ctx context.Context, key Key) (arrow.Table, error) {
	return s.loader.LoadProperty(ctx, key.Kind, key.RDGDir, key.Name)
}

// Register declares property names for (kind, rdgDir). A name repeated in
// names or already registered fails the whole call with
// domain.ErrInvariantViolation and registers nothing.
func (s *Store) Register(kind rdg.EntityKind, rdgDir string, names ...string) error {
	if kind != rdg.NodeEntity && kind != rdg.EdgeEntity {
		return domain.ErrInvalidArgument.WithDetailf("register properties: entity kind %d", kind)
	}
	return s.registered.Update(scope{kind, rdgDir}, func(cur map[string]struct{}, _ bool) (map[string]struct{}, error) {
		next := make(map[string]struct{}, len(cur)+len(names))
		for n := range cur {
			next[n] = struct{}{}
		}
		for _, n := range names {
			if _, dup := next[n]; dup {
				return nil, domain.ErrInvariantViolation.WithDetailf("%s property %q of %s registered twice", kind, n, rdgDir)
			}
			next[n] = struct{}{}
		}
		return next, nil
	})
}

// Registered returns the registered names for (kind, rdgDir), sorted.
func (s *Store) Registered(kind rdg.EntityKind, rdgDir string) []string {
	set, _ := s.registered.Get(scope{kind, rdgDir})
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (s *Store) isRegistered(key Key) bool {
	set, ok := s.registered.Get(scope{key.Kind, key.RDGDir})
	if !ok {
		return false
	}
	_, ok = set[key.Name]
	return ok
}

// Request returns the column for a registered property, loading it on a
// miss. Unregistered names fail with domain.ErrNotFound without touching
// storage. Loader errors carrying a domain code are returned as the loader
// reported them and are not cached.
func (s *Store) Request(ctx context.Context, kind rdg.EntityKind, rdgDir, name string) (arrow.Table, error) {
	key := Key{Kind: kind, RDGDir: rdgDir, Name: name}
	if !s.isRegistered(key) {
		return nil, domain.ErrNotFound.WithDetails(key.String())
	}
	tbl, err := s.cache.GetOrBuild(ctx, key)
	if err != nil {
		return nil, cache.BuilderCause(err)
	}
	return tbl, nil
}

// Resident reports whether the column is cached.
func (s *Store) Resident(kind rdg.EntityKind, rdgDir, name string) bool {
	return s.cache.Contains(Key{Kind: kind, RDGDir: rdgDir, Name: name})
}

// Invalidate drops a cached column; the registration stays.
func (s *Store) Invalidate(kind rdg.EntityKind, rdgDir, name string) {
	s.cache.Invalidate(Key{Kind: kind, RDGDir: rdgDir, Name: name})
}

// Forget drops every registration and cached column of rdgDir.
func (s *Store) Forget(rdgDir string) {
	s.registered.DeleteFunc(func(sc scope, _ map[string]struct{}) bool {
		return sc.dir == rdgDir
	})
	s.cache.InvalidateFunc(func(k Key) bool {
		return k.RDGDir == rdgDir
	})
}

// Len returns the number of cached columns.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Capacity returns the maximum number of cached columns.
func (s *Store) Capacity() int {
	return s.cache.Capacity()
}

// Close drops every cached column. Later requests fail with
// domain.ErrCacheClosed.
func (s *Store) Close() {
	s.cache.Close()
}
