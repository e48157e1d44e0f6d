package engine

import (
	"context"
	"runtime"
)

// workerPool bounds concurrent CPU-bound work (document decryption,
// staged validation) to GOMAXPROCS goroutines, per spec.md §5's "long
// CPU-bound operations are spawned on a worker pool so they do not block
// the runtime's reactor". It is a plain buffered-channel semaphore: the
// corpus has no dedicated pool library any component here could
// exercise, and a semaphore is the idiomatic stdlib-only way to bound
// fan-out.
type workerPool struct {
	sem chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &workerPool{sem: make(chan struct{}, size)}
}

// run executes fn on the pool, blocking until a slot is free or ctx is
// cancelled, and returns fn's error (or ctx's, if cancelled first).
func (p *workerPool) run(ctx context.Context, fn func() error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *workerPool) close() {
	// nothing to release: the semaphore channel is garbage once
	// unreferenced and no goroutines are pinned waiting on it at rest.
}
