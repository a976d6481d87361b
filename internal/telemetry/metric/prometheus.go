package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/darabos/katana/internal/rdg"
	"github.com/darabos/katana/internal/topology"
)

const namespace = "katana"

// Registry holds all application metrics on a private prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Cache metrics, labeled by cache name.
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheBuilds        *prometheus.CounterVec
	CacheBuildDuration *prometheus.HistogramVec
	CacheEvictions     *prometheus.CounterVec

	// View metrics, labeled by view kind.
	ViewBuilds   *prometheus.CounterVec
	ViewPersists *prometheus.CounterVec
	ViewLoads    *prometheus.CounterVec

	// Migration metrics.
	MigrationSteps *prometheus.CounterVec

	Sizes *SizeCollector
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Lookups answered by a resident entry.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Lookups that found no resident entry.",
		}, []string{"cache"}),
		CacheBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "builds_total",
			Help:      "Builder invocations by outcome.",
		}, []string{"cache", "result"}),
		CacheBuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "build_duration_seconds",
			Help:      "Builder latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted to stay within capacity.",
		}, []string{"cache"}),
		ViewBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "builds_total",
			Help:      "Topology views built from the base topology.",
		}, []string{"kind", "result"}),
		ViewPersists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "persists_total",
			Help:      "Topology views written and recorded in a manifest.",
		}, []string{"kind"}),
		ViewLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "loads_total",
			Help:      "Topology views decoded from a persisted blob.",
		}, []string{"kind"}),
		MigrationSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "steps_total",
			Help:      "Storage format migration steps applied.",
		}, []string{"from", "to", "result"}),
		Sizes: NewSizeCollector(),
	}

	r.registry.MustRegister(
		r.CacheHits,
		r.CacheMisses,
		r.CacheBuilds,
		r.CacheBuildDuration,
		r.CacheEvictions,
		r.ViewBuilds,
		r.ViewPersists,
		r.ViewLoads,
		r.MigrationSteps,
		r.Sizes,
	)
	return r
}

// Registerer exposes the underlying registry for components that register
// their own collectors, such as the badger store.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for reads.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Hit implements cache.Observer.
func (r *Registry) Hit(cache string) {
	r.CacheHits.WithLabelValues(cache).Inc()
}

// Miss implements cache.Observer.
func (r *Registry) Miss(cache string) {
	r.CacheMisses.WithLabelValues(cache).Inc()
}

// Built implements cache.Observer.
func (r *Registry) Built(cache string, elapsed time.Duration, err error) {
	r.CacheBuilds.WithLabelValues(cache, result(err)).Inc()
	r.CacheBuildDuration.WithLabelValues(cache).Observe(elapsed.Seconds())
}

// Evicted implements cache.Observer.
func (r *Registry) Evicted(cache string) {
	r.CacheEvictions.WithLabelValues(cache).Inc()
}

// ViewBuilt implements catalog.Observer.
func (r *Registry) ViewBuilt(kind topology.Kind, _ time.Duration, err error) {
	r.ViewBuilds.WithLabelValues(kind.String(), result(err)).Inc()
}

// ViewPersisted implements catalog.Observer.
func (r *Registry) ViewPersisted(kind topology.Kind) {
	r.ViewPersists.WithLabelValues(kind.String()).Inc()
}

// ViewLoaded implements catalog.Observer.
func (r *Registry) ViewLoaded(kind topology.Kind) {
	r.ViewLoads.WithLabelValues(kind.String()).Inc()
}

// MigrationStep implements migrate.Observer.
func (r *Registry) MigrationStep(from, to rdg.FormatVersion, _ time.Duration, err error) {
	r.MigrationSteps.WithLabelValues(strconv.Itoa(int(from)), strconv.Itoa(int(to)), result(err)).Inc()
}
