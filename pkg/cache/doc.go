// Package cache provides a keyed, lazily built, bounded cache.
//
// A Cache maps structural keys to values produced by a Builder on first
// request. Concurrent requests for a missing key are coalesced so the
// builder runs once and every caller observes the same outcome. Resident
// entries are evicted least-recently-used first once the entry count exceeds
// the configured capacity.
//
// Usage:
//
//	c, err := cache.New[viewKey, *topology.View](64, buildView, cache.WithName("views"))
//	v, err := c.GetOrBuild(ctx, viewKey{Dir: "graphs/a", Kind: kind})
package cache
