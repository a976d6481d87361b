// Package property caches property columns of open RDGs.
//
// A property must be registered for its (kind, rdg dir) before it can be
// requested; registration is how an opened RDG announces the names its
// manifest declares. Requests for registered names are served from a
// shared LRU cache and loaded on a miss, at most once per key at a time.
package property
