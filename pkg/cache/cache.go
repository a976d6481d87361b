package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/telemetry/logger"
)

// Key is a structural cache key. Equality comes from the comparable field
// tuple; CacheKey must be injective over that tuple because concurrent
// builds are coalesced by it.
type Key interface {
	comparable
	CacheKey() string
}

// Builder constructs the value for key on a miss.
type Builder[K Key, V any] func(ctx context.Context, key K) (V, error)

// Observer receives cache events. Implementations must be safe for
// concurrent use and must not call back into the cache.
type Observer interface {
	Hit(cache string)
	Miss(cache string)
	Built(cache string, elapsed time.Duration, err error)
	Evicted(cache string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)                         {}
func (nopObserver) Miss(string)                        {}
func (nopObserver) Built(string, time.Duration, error) {}
func (nopObserver) Evicted(string)                     {}

type options struct {
	name     string
	observer Observer
	logger   logger.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithName sets the name reported to the observer and in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
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

// flight tracks one in-progress build so Invalidate can keep it from
// committing.
type flight struct {
	stale bool
}

// result boxes a value so a nil interface V survives singleflight's any.
type result[V any] struct {
	value V
}

// Cache maps keys to lazily built, shared values with LRU eviction by
// entry count.
//
// Values handed out are shared by every caller and must be treated as
// immutable. At most one build per key runs at a time; callers requesting a
// key that is being built wait for that build and receive its outcome.
type Cache[K Key, V any] struct {
	name     string
	capacity int
	build    Builder[K, V]
	observer Observer
	logger   logger.Logger

	// mu guards lru, inflight and closed. It is never held while a
	// builder runs.
	mu       sync.Mutex
	lru      *simplelru.LRU
	inflight map[K]*flight
	closed   bool

	flights singleflight.Group
}

// New creates a cache holding at most capacity entries. build is used by
// GetOrBuild and may be nil if callers only use GetOrBuildFunc.
func New[K Key, V any](capacity int, build Builder[K, V], opts ...Option) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetailf("cache capacity must be positive, got %d", capacity)
	}

	o := options{
		name:     "cache",
		observer: nopObserver{},
		logger:   logger.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	lru, err := simplelru.NewLRU(capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}

	return &Cache[K, V]{
		name:     o.name,
		capacity: capacity,
		build:    build,
		observer: o.observer,
		logger:   logger.Named(o.logger, o.name),
		lru:      lru,
		inflight: make(map[K]*flight),
	}, nil
}

// GetOrBuild returns the value for key, building it with the cache's
// builder on a miss.
func (c *Cache[K, V]) GetOrBuild(ctx context.Context, key K) (V, error) {
	if c.build == nil {
		var zero V
		return zero, domain.ErrInvalidArgument.WithDetailf("cache %s has no default builder", c.name)
	}
	return c.GetOrBuildFunc(ctx, key, c.build)
}

// GetOrBuildFunc returns the value for key, building it with build on a
// miss. Concurrent misses for the same key run build once; every caller
// gets the same value or the same error. A failed build leaves the key
// absent so a later call retries.
//
// build sees the values of the first caller's ctx but not its
// cancellation: a caller cannot abort a build other callers wait for.
func (c *Cache[K, V]) GetOrBuildFunc(ctx context.Context, key K, build Builder[K, V]) (V, error) {
	var zero V

	v, ok, err := c.lookup(key)
	if err != nil {
		return zero, err
	}
	if ok {
		c.observer.Hit(c.name)
		return v, nil
	}
	c.observer.Miss(c.name)

	res, err, _ := c.flights.Do(key.CacheKey(), func() (any, error) {
		return c.buildAndCommit(ctx, key, build)
	})
	if err != nil {
		return zero, err
	}
	return res.(result[V]).value, nil
}

// Get returns the resident value for key without building. A hit refreshes
// the key's recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok, _ := c.lookup(key)
	return v, ok
}

// Peek returns the resident value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if c.closed {
		return zero, false
	}
	v, ok := c.lru.Peek(key)
	if !ok {
		return zero, false
	}
	return v.(V), true
}

// Contains reports whether key is resident without touching its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.lru.Contains(key)
}

// Invalidate removes key. A build for key that is already running still
// completes and its waiters receive its value, but the value is not
// committed; the next request builds a replacement.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	if f, ok := c.inflight[key]; ok {
		f.stale = true
		delete(c.inflight, key)
		c.flights.Forget(key.CacheKey())
	}
}

// InvalidateFunc removes every resident key for which match returns true
// and reports how many were removed. In-flight builds are not affected.
func (c *Cache[K, V]) InvalidateFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range c.lru.Keys() {
		key := k.(K)
		if match(key) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the maximum number of resident entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Close drops every entry. Subsequent calls fail with ErrCacheClosed;
// builds already running finish but are not committed.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.lru.Purge()
	for key, f := range c.inflight {
		f.stale = true
		delete(c.inflight, key)
	}
	c.logger.Debug("cache closed")
}

func (c *Cache[K, V]) lookup(key K) (V, bool, error) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return zero, false, domain.ErrCacheClosed.WithDetailf("cache %s, key %s", c.name, key.CacheKey())
	}
	if v, ok := c.lru.Get(key); ok {
		return v.(V), true, nil
	}
	return zero, false, nil
}

func (c *Cache[K, V]) buildAndCommit(ctx context.Context, key K, build Builder[K, V]) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrCacheClosed.WithDetailf("cache %s, key %s", c.name, key.CacheKey())
	}
	// A previous flight may have committed between our miss and this one.
	if v, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		return result[V]{value: v.(V)}, nil
	}
	f := &flight{}
	c.inflight[key] = f
	c.mu.Unlock()

	start := time.Now()
	v, err := safeBuild(context.WithoutCancel(ctx), key, build)
	elapsed := time.Since(start)
	c.observer.Built(c.name, elapsed, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	if err != nil {
		c.logger.Debug("build failed", "key", key.CacheKey(), "error", err)
		return nil, domain.ErrBuilderFailure.WithDetailf("cache %s, key %s", c.name, key.CacheKey()).WithCause(err)
	}
	if f.stale || c.closed {
		c.logger.Debug("discarding build of invalidated key", "key", key.CacheKey())
		return result[V]{value: v}, nil
	}

	if evicted := c.lru.Add(key, v); evicted {
		c.observer.Evicted(c.name)
		c.logger.Debug("evicted least recently used entry", "resident", c.lru.Len())
	}
	c.logger.Debug("built", "key", key.CacheKey(), "elapsed", elapsed)
	return result[V]{value: v}, nil
}

func safeBuild[K Key, V any](ctx context.Context, key K, build Builder[K, V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("builder panicked: %v", r)
		}
	}()
	return build(ctx, key)
}

// BuilderCause returns the builder's own error when err is a builder
// failure caused by a coded domain error, and err otherwise. Callers use it
// to surface loader errors such as domain.ErrNotFound unchanged.
func BuilderCause(err error) error {
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Code != domain.ErrBuilderFailure.Code {
		return err
	}
	var cause *domain.DomainError
	if errors.As(de.Cause, &cause) {
		return de.Cause
	}
	return err
}
