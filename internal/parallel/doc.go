// Package parallel provides the fork-join iteration used to fan per-node
// work out across goroutines.
//
// Executor.ForEach splits [0, n) into contiguous chunks and runs them on a
// bounded errgroup. The first error cancels the remaining chunks and is
// returned.
package parallel
