// Package metric provides Prometheus metrics for the storage layer.
//
//   - prometheus.go: Registry with cache, view and migration metrics
//   - collector.go: collector reporting resident cache sizes
//
// Registry implements the observer interfaces of pkg/cache,
// internal/catalog and internal/migrate, so one Registry can be shared by
// every component of a process.
package metric
