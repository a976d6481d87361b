package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Executor runs fn(ctx, i) for every i in [0, n), possibly concurrently.
// Implementations return the first error and stop scheduling further work
// once one occurs.
type Executor interface {
	ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// minChunk keeps tiny ranges from paying goroutine overhead per element.
const minChunk = 256

// Pool is an errgroup-backed Executor.
type Pool struct {
	workers int
}

// New returns a Pool running at most workers goroutines. workers <= 0 means
// GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// ForEach implements Executor.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	chunk := (n + p.workers - 1) / p.workers
	if chunk < minChunk {
		chunk = minChunk
	}
	if chunk >= n {
		return runRange(ctx, 0, n, fn)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		eg.Go(func() error {
			return runRange(egCtx, lo, hi, fn)
		})
	}
	return eg.Wait()
}

func runRange(ctx context.Context, lo, hi int, fn func(ctx context.Context, i int) error) error {
	for i := lo; i < hi; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Serial is an Executor that runs every index on the calling goroutine.
type Serial struct{}

// ForEach implements Executor.
func (Serial) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	return runRange(ctx, 0, n, fn)
}

var (
	_ Executor = (*Pool)(nil)
	_ Executor = Serial{}
)
