package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/parallel"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/topology"
	"github.com/darabos/katana/pkg/cache"
	"github.com/darabos/katana/pkg/cmap"
)

// State is the lifecycle state of one view key.
type State int

// View states.
const (
	Absent State = iota
	Building
	Resident
	PersistedResident
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Building:
		return "building"
	case Resident:
		return "resident"
	case PersistedResident:
		return "persisted-resident"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer receives view events.
type Observer interface {
	ViewBuilt(kind topology.Kind, elapsed time.Duration, err error)
	ViewPersisted(kind topology.Kind)
	ViewLoaded(kind topology.Kind)
}

type nopObserver struct{}

func (nopObserver) ViewBuilt(topology.Kind, time.Duration, error) {}
func (nopObserver) ViewPersisted(topology.Kind)                   {}
func (nopObserver) ViewLoaded(topology.Kind)                      {}

type options struct {
	persist   bool
	observer  Observer
	logger    logger.Logger
	cacheOpts []cache.Option
}

// Option configures a Catalog.
type Option func(*options)

// WithPersistence enables writing built views back to their RDG. Views are
// only written to manifests at rdg.Version3 or later.
func WithPersistence(enabled bool) Option {
	return func(o *options) {
		o.persist = enabled
	}
}

// WithObserver installs a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCacheOptions passes options to the underlying view cache.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// Key identifies a view. Base is compared by identity: a view is only
// valid for the topology instance it was derived from.
type Key struct {
	RDGDir string
	Base   *topology.Topology
	Kind   topology.Kind
}

// CacheKey implements cache.Key.
func (k Key) CacheKey() string {
	return strconv.Quote(k.RDGDir) + fmt.Sprintf(":%p:", k.Base) + k.Kind.String()
}

// Catalog loads or builds topology views and keeps them in an LRU cache.
type Catalog struct {
	exec     parallel.Executor
	persist  bool
	observer Observer
	logger   logger.Logger
	cache    *cache.Cache[Key, entry]

	building *cmap.Map[Key, struct{}]

	// writes makes persistence single-writer per (rdg dir, kind).
	writes singleflight.Group
	builds atomic.Int64
}

// New creates a catalog holding at most capacity views. exec may be nil
// for serial builds.
func New(exec parallel.Executor, capacity int, opts ...Option) (*Catalog, error) {
	if exec == nil {
		exec = parallel.Serial{}
	}
	o := options{
		observer: nopObserver{},
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.Named(o.logger, "catalog")
	cacheOpts := append([]cache.Option{cache.WithName("view"), cache.WithLogger(o.logger)}, o.cacheOpts...)
	c, err := cache.New[Key, entry](capacity, nil, cacheOpts...)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		exec:      exec,
		persist:   o.persist,
		observer:  o.observer,
		logger:    log,
		cache:     c,
		building: cmap.New[Key, struct{}](),
	}, nil
}

// LoadOrBuild returns the view of kind for base, the topology of r.
//
// A view recorded in r's manifest is decoded and checked against base; a
// mismatch is domain.ErrCorrupt and is never repaired by rebuilding.
// Otherwise the view is built and, if persistence is enabled, written and
// recorded in the manifest before LoadOrBuild returns.
func (c *Catalog) LoadOrBuild(ctx context.Context, r *rdg.RDG, base *topology.Topology, kind topology.Kind) (*topology.View, error) {
	if r == nil || base == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("load view: rdg and base topology are required")
	}
	if !kind.Valid() {
		return nil, domain.ErrInvalidArgument.WithDetailf("load view: unknown kind %d", uint8(kind))
	}

	key := Key{RDGDir: r.Dir(), Base: base, Kind: kind}
	e, err := c.cache.GetOrBuildFunc(ctx, key, func(ctx context.Context, key Key) (entry, error) {
		return c.loadOrBuild(ctx, r, key)
	})
	if err != nil {
		return nil, cache.BuilderCause(err)
	}
	return e.view, nil
}

// entry is a cached view and whether it is recorded in its RDG. The flag
// lives in the cache value so it leaves with the view on eviction.
type entry struct {
	view      *topology.View
	persisted bool
}

func (c *Catalog) loadOrBuild(ctx context.Context, r *rdg.RDG, key Key) (entry, error) {
	c.building.Set(key, struct{}{})
	defer c.building.Delete(key)

	log := c.logger.With("rdg_dir", key.RDGDir, "kind", key.Kind.String())

	v, ok, err := r.LoadView(ctx, key.Kind, key.Base)
	if err != nil {
		log.Error("persisted view unusable", "error", err)
		return entry{}, err
	}
	if ok {
		c.observer.ViewLoaded(key.Kind)
		log.Debug("view loaded")
		return entry{view: v, persisted: true}, nil
	}

	start := time.Now()
	v, err = topology.Build(ctx, c.exec, key.Base, key.Kind)
	elapsed := time.Since(start)
	c.builds.Add(1)
	c.observer.ViewBuilt(key.Kind, elapsed, err)
	if err != nil {
		return entry{}, err
	}
	log.Info("view built", "nodes", v.NumNodes, "edges", v.NumEdges, "elapsed", elapsed)

	if !c.persist || r.Manifest().Version < rdg.Version3 {
		return entry{view: v}, nil
	}
	if err := c.write(ctx, r, v); err != nil {
		return entry{}, err
	}
	return entry{view: v, persisted: true}, nil
}

// write records v unless a view of its kind with the current layout is
// already recorded.
func (c *Catalog) write(ctx context.Context, r *rdg.RDG, v *topology.View) error {
	_, err, _ := c.writes.Do(strconv.Quote(r.Dir())+":"+v.Kind.String(), func() (any, error) {
		if info, ok := r.Manifest().View(v.Kind); ok && info.LayoutVersion == topology.LayoutVersion {
			return nil, nil
		}
		if _, err := r.RecordView(ctx, v); err != nil {
			return nil, err
		}
		c.observer.ViewPersisted(v.Kind)
		return nil, nil
	})
	return err
}

// State reports the lifecycle state of a view key.
func (c *Catalog) State(r *rdg.RDG, base *topology.Topology, kind topology.Kind) State {
	key := Key{RDGDir: r.Dir(), Base: base, Kind: kind}
	if e, ok := c.cache.Peek(key); ok {
		if e.persisted {
			return PersistedResident
		}
		return Resident
	}
	if c.building.Has(key) {
		return Building
	}
	return Absent
}

// Builds returns how many views this catalog has built, including failed
// builds. Views loaded from storage are not counted.
func (c *Catalog) Builds() int64 {
	return c.builds.Load()
}

// Forget drops every cached view of rdgDir.
func (c *Catalog) Forget(rdgDir string) int {
	return c.cache.InvalidateFunc(func(k Key) bool { return k.RDGDir == rdgDir })
}

// Len returns the number of cached views.
func (c *Catalog) Len() int {
	return c.cache.Len()
}

// Capacity returns the maximum number of cached views.
func (c *Catalog) Capacity() int {
	return c.cache.Capacity()
}

// Close drops every cached view.
func (c *Catalog) Close() {
	c.cache.Close()
}
