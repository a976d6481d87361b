package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SizeCollector reports the resident entry count and capacity of every
// tracked cache at scrape time.
type SizeCollector struct {
	resident *prometheus.Desc
	capacity *prometheus.Desc

	mu     sync.Mutex
	caches map[string]trackedCache
}

type trackedCache struct {
	size     func() int
	capacity int
}

// NewSizeCollector creates a collector with no tracked caches.
func NewSizeCollector() *SizeCollector {
	return &SizeCollector{
		resident: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "resident_entries"),
			"Entries currently resident.",
			[]string{"cache"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity_entries"),
			"Configured entry capacity.",
			[]string{"cache"}, nil,
		),
		caches: make(map[string]trackedCache),
	}
}

// Track adds or replaces the cache reported under name.
func (c *SizeCollector) Track(name string, size func() int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caches[name] = trackedCache{size: size, capacity: capacity}
}

// Untrack stops reporting name.
func (c *SizeCollector) Untrack(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.caches, name)
}

// Describe implements prometheus.Collector.
func (c *SizeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.resident
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *SizeCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	caches := make(map[string]trackedCache, len(c.caches))
	for name, tc := range c.caches {
		caches[name] = tc
	}
	c.mu.Unlock()

	for name, tc := range caches {
		ch <- prometheus.MustNewConstMetric(c.resident, prometheus.GaugeValue, float64(tc.size()), name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(tc.capacity), name)
	}
}
