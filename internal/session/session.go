package session

import (
	"context"
	"sync"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"golang.org/x/sync/singleflight"

	"github.com/darabos/katana/internal/catalog"
	"github.com/darabos/katana/internal/config"
	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/infra/confloader"
	"github.com/darabos/katana/internal/migrate"
	"github.com/darabos/katana/internal/parallel"
	"github.com/darabos/katana/internal/property"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/telemetry/metric"
	"github.com/darabos/katana/internal/topology"
	"github.com/darabos/katana/pkg/cache"
	"github.com/darabos/katana/pkg/cmap"
)

// Cache names reported to metrics.
const (
	PropertyCacheName = "property"
	ViewCacheName     = "view"
)

type options struct {
	exec             parallel.Executor
	propertyCapacity int
	viewCapacity     int
	persistViews     bool
	persistMigrated  bool
	watch            bool
	ownStore         bool
	mem              memory.Allocator
	logger           logger.Logger
	metrics          *metric.Registry
}

// Option configures a Session.
type Option func(*options)

// WithExecutor sets the executor used to build views and migrate.
func WithExecutor(exec parallel.Executor) Option {
	return func(o *options) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// WithCapacities sets the property and view cache capacities, in entries.
func WithCapacities(properties, views int) Option {
	return func(o *options) {
		o.propertyCapacity = properties
		o.viewCapacity = views
	}
}

// WithViewPersistence controls whether built views are written back.
func WithViewPersistence(enabled bool) Option {
	return func(o *options) {
		o.persistViews = enabled
	}
}

// WithPersistMigrated writes the upgraded manifest of an RDG opened at an
// older format version.
func WithPersistMigrated(enabled bool) Option {
	return func(o *options) {
		o.persistMigrated = enabled
	}
}

// WithManifestWatch drops open RDGs whose manifest another writer
// replaces. The store must implement storage.Locator.
func WithManifestWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithOwnedStore makes Close also close the store.
func WithOwnedStore() Option {
	return func(o *options) {
		o.ownStore = true
	}
}

// WithAllocator sets the Arrow allocator for property columns.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.mem = mem
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

// WithMetrics reports cache, view and migration events to reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(o *options) {
		o.metrics = reg
	}
}

// Session serves properties and views of the RDGs in one blob store.
type Session struct {
	store      storage.BlobStore
	ownStore   bool
	exec       parallel.Executor
	mem        memory.Allocator
	migrator   *migrate.Migrator
	properties *property.Store
	catalog    *catalog.Catalog
	metrics    *metric.Registry
	logger     logger.Logger

	persistMigrated bool

	rdgs  *cmap.Map[string, *rdg.RDG]
	opens singleflight.Group

	watcher *confloader.Watcher
	// watched maps a watched manifest path to its rdg dir.
	watched *cmap.Map[string, string]

	closeOnce sync.Once
}

// New creates a session over store.
func New(store storage.BlobStore, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("session needs a blob store")
	}
	o := options{
		exec:             parallel.New(0),
		propertyCapacity: config.DefaultPropertyCapacity,
		viewCapacity:     config.DefaultViewCapacity,
		persistViews:     true,
		mem:              memory.DefaultAllocator,
		logger:           logger.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		store:           store,
		ownStore:        o.ownStore,
		exec:            o.exec,
		mem:             o.mem,
		metrics:         o.metrics,
		logger:          logger.Named(o.logger, "session"),
		persistMigrated: o.persistMigrated,
		rdgs:            cmap.New[string, *rdg.RDG](),
		watched:         cmap.New[string, string](),
	}

	migrateOpts := []migrate.Option{migrate.WithLogger(o.logger), migrate.WithAllocator(o.mem)}
	propertyOpts := []cache.Option{cache.WithName(PropertyCacheName), cache.WithLogger(o.logger)}
	catalogOpts := []catalog.Option{catalog.WithPersistence(o.persistViews), catalog.WithLogger(o.logger)}
	if o.metrics != nil {
		migrateOpts = append(migrateOpts, migrate.WithObserver(o.metrics))
		propertyOpts = append(propertyOpts, cache.WithObserver(o.metrics))
		catalogOpts = append(catalogOpts,
			catalog.WithObserver(o.metrics),
			catalog.WithCacheOptions(cache.WithObserver(o.metrics)),
		)
	}

	s.migrator = migrate.New(store, o.exec, migrateOpts...)

	var err error
	s.properties, err = property.NewStore(property.LoaderFunc(s.loadProperty), o.propertyCapacity, propertyOpts...)
	if err != nil {
		return nil, err
	}
	s.catalog, err = catalog.New(o.exec, o.viewCapacity, catalogOpts...)
	if err != nil {
		s.properties.Close()
		return nil, err
	}

	if o.watch {
		if err := s.startWatcher(o.logger); err != nil {
			s.properties.Close()
			s.catalog.Close()
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.Sizes.Track(PropertyCacheName, s.properties.Len, s.properties.Capacity())
		s.metrics.Sizes.Track(ViewCacheName, s.catalog.Len, s.catalog.Capacity())
	}
	return s, nil
}

// NewFromConfig opens the configured store and creates a session owning it.
func NewFromConfig(cfg *config.Config, log logger.Logger, reg *metric.Registry) (*Session, error) {
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.StorageConfig(), log)
	if err != nil {
		return nil, err
	}
	if bs, ok := store.(*storage.BadgerStore); ok && reg != nil {
		if err := bs.RegisterMetrics(reg.Registerer()); err != nil {
			store.Close()
			return nil, err
		}
	}
	opts := []Option{
		WithOwnedStore(),
		WithExecutor(parallel.New(cfg.Parallel.Workers)),
		WithCapacities(cfg.Cache.PropertyCapacity, cfg.Cache.ViewCapacity),
		WithViewPersistence(cfg.Views.Persist),
		WithPersistMigrated(cfg.Session.PersistMigrated),
		WithManifestWatch(cfg.Session.WatchManifests),
		WithLogger(log),
	}
	if reg != nil {
		opts = append(opts, WithMetrics(reg))
	}
	s, err := New(store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// Store returns the session's blob store.
func (s *Session) Store() storage.BlobStore {
	return s.store
}

// Migrator returns the session's migrator.
func (s *Session) Migrator() *migrate.Migrator {
	return s.migrator
}

// Properties returns the session's property store.
func (s *Session) Properties() *property.Store {
	return s.properties
}

// Catalog returns the session's view catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Open returns the handle of dir, opening and migrating it on first use.
// Concurrent first opens of the same dir share one migration.
func (s *Session) Open(ctx context.Context, dir string) (*rdg.RDG, error) {
	if r, ok := s.rdgs.Get(dir); ok {
		return r, nil
	}
	v, err, _ := s.opens.Do(dir, func() (any, error) {
		if r, ok := s.rdgs.Get(dir); ok {
			return r, nil
		}
		return s.open(ctx, dir)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rdg.RDG), nil
}

func (s *Session) open(ctx context.Context, dir string) (*rdg.RDG, error) {
	log := s.logger.With("rdg_dir", dir)

	onDisk, err := rdg.ReadManifest(ctx, s.store, dir)
	if err != nil {
		return nil, err
	}
	m, err := s.migrator.Migrate(ctx, dir, onDisk)
	if err != nil {
		return nil, err
	}
	r, err := rdg.Open(s.store, dir, m, rdg.WithAllocator(s.mem), rdg.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	if s.persistMigrated && onDisk.Version != m.Version {
		if err := r.Persist(ctx); err != nil {
			return nil, err
		}
		log.Info("persisted migrated manifest", "from", int(onDisk.Version), "to", int(m.Version))
	}

	// Registrations of an earlier handle of dir may remain after Forget
	// raced with a load; start clean.
	s.properties.Forget(dir)
	for _, kind := range []rdg.EntityKind{rdg.NodeEntity, rdg.EdgeEntity} {
		if err := s.properties.Register(kind, dir, m.PropertyNames(kind)...); err != nil {
			s.properties.Forget(dir)
			return nil, err
		}
	}

	if s.watcher != nil {
		if err := s.watch(dir); err != nil {
			s.properties.Forget(dir)
			return nil, err
		}
	}

	s.rdgs.Set(dir, r)
	log.Debug("rdg opened", "version", int(onDisk.Version))
	return r, nil
}

func (s *Session) loadProperty(ctx context.Context, kind rdg.EntityKind, dir, name string) (arrow.Table, error) {
	r, ok := s.rdgs.Get(dir)
	if !ok {
		return nil, domain.ErrNotFound.WithDetailf("rdg %s is not open", dir)
	}
	return r.LoadProperty(ctx, kind, name)
}

// Property returns the named property column of dir. The table is shared
// with other callers; Retain it to keep it past eviction.
func (s *Session) Property(ctx context.Context, kind rdg.EntityKind, dir, name string) (arrow.Table, error) {
	if _, err := s.Open(ctx, dir); err != nil {
		return nil, err
	}
	return s.properties.Request(ctx, kind, dir, name)
}

// View returns the view of kind over the topology of dir, loading a
// persisted view or building one.
func (s *Session) View(ctx context.Context, dir string, kind topology.Kind) (*topology.View, error) {
	r, err := s.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	base, err := r.Topology(ctx)
	if err != nil {
		return nil, err
	}
	return s.catalog.LoadOrBuild(ctx, r, base, kind)
}

// Opened returns the open rdg dirs.
func (s *Session) Opened() []string {
	var dirs []string
	s.rdgs.Range(func(dir string, _ *rdg.RDG) bool {
		dirs = append(dirs, dir)
		return true
	})
	return dirs
}

// Forget drops the handle of dir and everything cached for it. The next
// Open reads the manifest again.
func (s *Session) Forget(dir string) {
	s.rdgs.Delete(dir)
	s.properties.Forget(dir)
	views := s.catalog.Forget(dir)
	s.unwatch(dir)
	s.logger.Debug("rdg forgotten", "rdg_dir", dir, "views", views)
}

// Close drops every handle and cache, stops the watcher and, if the
// session owns it, closes the store.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			if werr := s.watcher.Stop(); werr != nil {
				s.logger.Warn("failed to stop manifest watcher", "error", werr)
			}
		}
		if s.metrics != nil {
			s.metrics.Sizes.Untrack(PropertyCacheName)
			s.metrics.Sizes.Untrack(ViewCacheName)
		}
		s.properties.Close()
		s.catalog.Close()
		s.rdgs.Clear()
		if s.ownStore {
			err = s.store.Close()
		}
		s.logger.Debug("session closed")
	})
	return err
}
