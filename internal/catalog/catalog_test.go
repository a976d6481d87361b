package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/darabos/katana/internal/core/domain"
	"github.com/darabos/katana/internal/parallel"
	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/rdg/rdgtest"
	"github.com/darabos/katana/internal/storage"
	"github.com/darabos/katana/internal/telemetry/logger"
	"github.com/darabos/katana/internal/topology"
)

const dir = "graphs/sample"

func openRDG(t *testing.T, store storage.BlobStore) (*rdg.RDG, *topology.Topology) {
	t.Helper()
	ctx := context.Background()
	m, err := rdg.ReadManifest(ctx, store, dir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	r, err := rdg.Open(store, dir, m, rdg.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	base, err := r.Topology(ctx)
	if err != nil {
		t.Fatalf("Topology() error = %v", err)
	}
	return r, base
}

func newCatalog(t *testing.T, capacity int, opts ...Option) *Catalog {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	c, err := New(parallel.New(4), capacity, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func viewBlobs(t *testing.T, store storage.BlobStore) []string {
	t.Helper()
	names, err := store.List(context.Background(), dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var views []string
	for _, n := range names {
		if strings.HasPrefix(n, "view_") {
			views = append(views, n)
		}
	}
	return views
}

type countingObserver struct {
	mu                       sync.Mutex
	built, persisted, loaded int
}

func (o *countingObserver) ViewBuilt(topology.Kind, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.built++
}

func (o *countingObserver) ViewPersisted(topology.Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.persisted++
}

func (o *countingObserver) ViewLoaded(topology.Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded++
}

func TestLoadOrBuild_BuildPersistReload(t *testing.T) {
	ctx := context.Background()

	for _, kind := range topology.Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			store := rdgtest.Store(t)
			rdgtest.Create(t, store, dir, rdg.CurrentVersion)

			obs := &countingObserver{}
			r, base := openRDG(t, store)
			c := newCatalog(t, 4, WithPersistence(true), WithObserver(obs))

			if s := c.State(r, base, kind); s != Absent {
				t.Errorf("State() before = %v, want absent", s)
			}
			built, err := c.LoadOrBuild(ctx, r, base, kind)
			if err != nil {
				t.Fatalf("LoadOrBuild() error = %v", err)
			}
			if s := c.State(r, base, kind); s != PersistedResident {
				t.Errorf("State() after = %v, want persisted-resident", s)
			}
			again, err := c.LoadOrBuild(ctx, r, base, kind)
			if err != nil || again != built {
				t.Errorf("second LoadOrBuild() = (%p, %v), want cached %p", again, err, built)
			}
			if c.Builds() != 1 || obs.built != 1 || obs.persisted != 1 {
				t.Errorf("builds = %d, observed built %d persisted %d; want 1, 1, 1", c.Builds(), obs.built, obs.persisted)
			}
			if n := len(viewBlobs(t, store)); n != 1 {
				t.Errorf("%d view blobs, want 1", n)
			}

			// A fresh handle and catalog load the persisted view.
			r2, base2 := openRDG(t, store)
			c2 := newCatalog(t, 4, WithPersistence(true), WithObserver(obs))
			loaded, err := c2.LoadOrBuild(ctx, r2, base2, kind)
			if err != nil {
				t.Fatalf("LoadOrBuild() from storage error = %v", err)
			}
			if c2.Builds() != 0 || obs.loaded != 1 {
				t.Errorf("reload builds = %d, loads = %d; want 0, 1", c2.Builds(), obs.loaded)
			}
			if !loaded.Equal(built) {
				t.Error("loaded view differs from built view")
			}
			if s := c2.State(r2, base2, kind); s != PersistedResident {
				t.Errorf("State() after load = %v, want persisted-resident", s)
			}
		})
	}
}

func TestLoadOrBuild_WithoutPersistence(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 4)

	if _, err := c.LoadOrBuild(ctx, r, base, topology.EdgesSortedByDestID); err != nil {
		t.Fatalf("LoadOrBuild() error = %v", err)
	}
	if s := c.State(r, base, topology.EdgesSortedByDestID); s != Resident {
		t.Errorf("State() = %v, want resident", s)
	}
	if views := viewBlobs(t, store); len(views) != 0 || len(r.Manifest().TopologyViews) != 0 {
		t.Errorf("view persisted without persistence: %v", views)
	}
}

func TestLoadOrBuild_ConcurrentBuildsOnce(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 4, WithPersistence(true))

	const n = 16
	views := make([]*topology.View, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views[i], errs[i] = c.LoadOrBuild(ctx, r, base, topology.EdgeTypeAwareBiDirectional)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("LoadOrBuild() #%d error = %v", i, errs[i])
		}
		if views[i] != views[0] {
			t.Fatalf("LoadOrBuild() #%d returned a different view", i)
		}
	}
	if c.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", c.Builds())
	}
	if n := len(viewBlobs(t, store)); n != 1 {
		t.Errorf("%d view blobs, want 1", n)
	}
}

func TestLoadOrBuild_CorruptViewIsNotRepaired(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)

	r, base := openRDG(t, store)
	c := newCatalog(t, 4, WithPersistence(true))
	if _, err := c.LoadOrBuild(ctx, r, base, topology.EdgesSortedByDestID); err != nil {
		t.Fatalf("LoadOrBuild() error = %v", err)
	}
	blob := viewBlobs(t, store)[0]
	garbage := []byte("KTVIEW01 not a view")
	if err := store.WriteBlob(ctx, dir, blob, garbage); err != nil {
		t.Fatalf("WriteBlob() error = %v", err)
	}

	r2, base2 := openRDG(t, store)
	c2 := newCatalog(t, 4, WithPersistence(true))
	_, err := c2.LoadOrBuild(ctx, r2, base2, topology.EdgesSortedByDestID)
	if !errors.Is(err, domain.ErrCorrupt) {
		t.Fatalf("LoadOrBuild() error = %v, want ErrCorrupt", err)
	}
	if c2.Builds() != 0 {
		t.Errorf("Builds() = %d, corrupt view must not be rebuilt", c2.Builds())
	}
	data, _ := store.ReadBlob(ctx, dir, blob)
	if string(data) != string(garbage) {
		t.Error("corrupt view blob was overwritten")
	}
	if s := c2.State(r2, base2, topology.EdgesSortedByDestID); s != Absent {
		t.Errorf("State() = %v, want absent", s)
	}
}

// gatedExecutor blocks the first ForEach until release is closed.
type gatedExecutor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedExecutor) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return parallel.Serial{}.ForEach(ctx, n, fn)
}

func TestState_Building(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)

	exec := &gatedExecutor{started: make(chan struct{}), release: make(chan struct{})}
	c, err := New(exec, 4, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadOrBuild(ctx, r, base, topology.EdgesSortedByDestID)
		done <- err
	}()

	<-exec.started
	if s := c.State(r, base, topology.EdgesSortedByDestID); s != Building {
		t.Errorf("State() during build = %v, want building", s)
	}
	close(exec.release)
	if err := <-done; err != nil {
		t.Fatalf("LoadOrBuild() error = %v", err)
	}
	if s := c.State(r, base, topology.EdgesSortedByDestID); s != Resident {
		t.Errorf("State() after build = %v, want resident", s)
	}
}

func TestLoadOrBuild_KeyIncludesBaseInstance(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 4)

	other := rdgtest.Topology()
	a, err := c.LoadOrBuild(ctx, r, base, topology.EdgesSortedByDestID)
	if err != nil {
		t.Fatalf("LoadOrBuild(base) error = %v", err)
	}
	b, err := c.LoadOrBuild(ctx, r, other, topology.EdgesSortedByDestID)
	if err != nil {
		t.Fatalf("LoadOrBuild(other) error = %v", err)
	}
	if a == b || c.Builds() != 2 || c.Len() != 2 {
		t.Errorf("distinct base instances should get distinct views: builds %d, len %d", c.Builds(), c.Len())
	}
}

func TestLoadOrBuild_EvictionAndForget(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 1)

	for _, kind := range []topology.Kind{topology.EdgesSortedByDestID, topology.NodesSortedByDegreeThenEdgesSortedByDestID} {
		if _, err := c.LoadOrBuild(ctx, r, base, kind); err != nil {
			t.Fatalf("LoadOrBuild(%v) error = %v", kind, err)
		}
	}
	if s := c.State(r, base, topology.EdgesSortedByDestID); s != Absent {
		t.Errorf("evicted view State() = %v, want absent", s)
	}

	if n := c.Forget(dir); n != 1 || c.Len() != 0 {
		t.Errorf("Forget() = %d, Len() = %d; want 1, 0", n, c.Len())
	}
}

func TestLoadOrBuild_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 2)

	if _, err := c.LoadOrBuild(ctx, r, base, topology.Kind(42)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unknown kind error = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.LoadOrBuild(ctx, r, nil, topology.EdgesSortedByDestID); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("nil base error = %v, want ErrInvalidArgument", err)
	}
	if _, err := New(nil, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("New(capacity 0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestLoadOrBuild_EvictedPersistedViewReloads(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	c := newCatalog(t, 1, WithPersistence(true))
	first, second := topology.EdgesSortedByDestID, topology.NodesSortedByDegreeThenEdgesSortedByDestID

	if _, err := c.LoadOrBuild(ctx, r, base, first); err != nil {
		t.Fatalf("LoadOrBuild(first) error = %v", err)
	}
	if s := c.State(r, base, first); s != PersistedResident {
		t.Fatalf("State() = %v, want persisted-resident", s)
	}
	if _, err := c.LoadOrBuild(ctx, r, base, second); err != nil {
		t.Fatalf("LoadOrBuild(second) error = %v", err)
	}
	if s := c.State(r, base, first); s != Absent {
		t.Errorf("evicted view State() = %v, want absent", s)
	}

	if _, err := c.LoadOrBuild(ctx, r, base, first); err != nil {
		t.Fatalf("LoadOrBuild(first) again error = %v", err)
	}
	if s := c.State(r, base, first); s != PersistedResident {
		t.Errorf("reloaded view State() = %v, want persisted-resident", s)
	}
	if c.Builds() != 2 {
		t.Errorf("Builds() = %d, want 2; the evicted view should load from storage", c.Builds())
	}
}

// gatedStore holds view blob reads until gate is closed or the read's
// context ends.
type gatedStore struct {
	storage.BlobStore
	reading chan struct{}
	once    sync.Once
	gate    chan struct{}
}

func (s *gatedStore) ReadRange(ctx context.Context, dir, name string, offset, length int64) ([]byte, error) {
	if strings.HasPrefix(name, "view_") {
		s.once.Do(func() { close(s.reading) })
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.BlobStore.ReadRange(ctx, dir, name, offset, length)
}

func TestLoadOrBuild_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	ctx := context.Background()
	store := rdgtest.Store(t)
	rdgtest.Create(t, store, dir, rdg.CurrentVersion)
	r, base := openRDG(t, store)
	kind := topology.EdgesSortedByDestID
	want, err := newCatalog(t, 1, WithPersistence(true)).LoadOrBuild(ctx, r, base, kind)
	if err != nil {
		t.Fatalf("LoadOrBuild() error = %v", err)
	}

	gated := &gatedStore{BlobStore: store, reading: make(chan struct{}), gate: make(chan struct{})}
	r, base = openRDG(t, gated)
	c := newCatalog(t, 1)

	first, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.LoadOrBuild(first, r, base, kind)
	}()
	<-gated.reading

	var got *topology.View
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, err = c.LoadOrBuild(ctx, r, base, kind)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(gated.gate)
	wg.Wait()

	if err != nil {
		t.Fatalf("waiter error = %v, want the loaded view", err)
	}
	if !got.Equal(want) {
		t.Error("waiter view differs from the persisted view")
	}
}
