// Package cmap provides a concurrent map implementation.
//
// The map is split into shards, each guarded by its own RWMutex, so
// unrelated keys rarely contend:
//
//   - Sharding: Configurable power-of-two shard count
//   - Hashing: murmur3 over the key's printed form
//   - Atomic read-modify-write per key (Update)
//   - Iteration: Safe iteration while holding per-shard read locks
//
// Usage:
//
//	m := cmap.New[string, []string]()
//	m.Set("node/graphs/a", names)
//	val, ok := m.Get("node/graphs/a")
package cmap
