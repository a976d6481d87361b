package metric

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/topology"
)

func TestRegistry_CacheObserver(t *testing.T) {
	r := NewRegistry()

	r.Miss("property")
	r.Built("property", 3*time.Millisecond, nil)
	r.Hit("property")
	r.Hit("property")
	r.Built("property", time.Millisecond, errors.New("load failed"))
	r.Evicted("view")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"hits", testutil.ToFloat64(r.CacheHits.WithLabelValues("property")), 2},
		{"misses", testutil.ToFloat64(r.CacheMisses.WithLabelValues("property")), 1},
		{"builds ok", testutil.ToFloat64(r.CacheBuilds.WithLabelValues("property", "ok")), 1},
		{"builds error", testutil.ToFloat64(r.CacheBuilds.WithLabelValues("property", "error")), 1},
		{"evictions", testutil.ToFloat64(r.CacheEvictions.WithLabelValues("view")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRegistry_ViewAndMigrationObservers(t *testing.T) {
	r := NewRegistry()
	kind := topology.EdgeTypeAwareBiDirectional

	r.ViewBuilt(kind, time.Millisecond, nil)
	r.ViewPersisted(kind)
	r.ViewLoaded(kind)
	r.ViewLoaded(kind)
	r.MigrationStep(rdg.Version1, rdg.Version2, time.Millisecond, nil)

	if got := testutil.ToFloat64(r.ViewBuilds.WithLabelValues(kind.String(), "ok")); got != 1 {
		t.Errorf("view builds = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.ViewPersists.WithLabelValues(kind.String())); got != 1 {
		t.Errorf("view persists = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.ViewLoads.WithLabelValues(kind.String())); got != 2 {
		t.Errorf("view loads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.MigrationSteps.WithLabelValues("1", "2", "ok")); got != 1 {
		t.Errorf("migration steps = %v, want 1", got)
	}
}

func TestRegistry_SizeCollector(t *testing.T) {
	r := NewRegistry()
	resident := 3
	r.Sizes.Track("view", func() int { return resident }, 8)

	expected := `
# HELP katana_cache_capacity_entries Configured entry capacity.
# TYPE katana_cache_capacity_entries gauge
katana_cache_capacity_entries{cache="view"} 8
# HELP katana_cache_resident_entries Entries currently resident.
# TYPE katana_cache_resident_entries gauge
katana_cache_resident_entries{cache="view"} 3
`
	err := testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected),
		"katana_cache_resident_entries", "katana_cache_capacity_entries")
	if err != nil {
		t.Error(err)
	}

	r.Sizes.Untrack("view")
	if n, err := testutil.GatherAndCount(r.Gatherer(), "katana_cache_resident_entries"); err != nil || n != 0 {
		t.Errorf("after Untrack: %d series, err %v", n, err)
	}
}
