// Package executor provides a bounded worker pool for blocking jobs. The
// synchronous native cancel call runs here so it never blocks a goroutine
// that services pipeline work.
package executor

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Post after Close.
var ErrClosed = errors.New("executor is closed")

// Executor runs posted jobs on their own goroutines, with concurrency
// bounded by a weighted semaphore. An idle executor holds no goroutines.
type Executor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates an executor running at most workers jobs concurrently. A
// non-positive count defaults to GOMAXPROCS.
func New(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{sem: semaphore.NewWeighted(int64(workers))}
}

// Post schedules the job for execution off the caller's goroutine. Jobs
// beyond the concurrency bound wait for a free slot. Post itself never
// blocks.
func (e *Executor) Post(job func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		job()
	}()
	return nil
}

// Close rejects further posts and waits for in-flight jobs to finish.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

var (
	systemOnce sync.Once
	system     *Executor
)

// System returns the process-wide default executor.
func System() *Executor {
	systemOnce.Do(func() {
		system = New(0)
	})
	return system
}
