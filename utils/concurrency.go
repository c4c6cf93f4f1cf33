package utils

import (
	"context"
	"sync"
	"time"
)

// WorkerPool runs jobs on at most n goroutines and spaces job starts by a
// minimum interval. Submission blocks while every slot is busy.
type WorkerPool struct {
	slots    chan struct{}
	wg       sync.WaitGroup
	interval time.Duration

	mu   sync.Mutex
	next time.Time // earliest start for the next job
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
// A rateLimitMs of 0 disables rate limiting.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if rateLimitMs < 0 {
		rateLimitMs = 0
	}
	return &WorkerPool{
		slots:    make(chan struct{}, maxWorkers),
		interval: time.Duration(rateLimitMs) * time.Millisecond,
	}
}

// Submit runs job on the pool.
func (wp *WorkerPool) Submit(job func()) {
	wp.SubmitContext(context.Background(), job)
}

// SubmitContext runs job on the pool unless ctx is done first, either while
// waiting for a free slot or for the rate limit. It returns false when ctx
// ended before a slot was free. An accepted job can still be dropped if ctx
// ends during its rate-limit wait.
func (wp *WorkerPool) SubmitContext(ctx context.Context, job func()) bool {
	select {
	case wp.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	if ctx.Err() != nil {
		<-wp.slots
		return false
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.slots }()

		if !wp.wait(ctx) {
			return
		}
		job()
	}()
	return true
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// wait reserves the next start time under the lock, then sleeps until it.
func (wp *WorkerPool) wait(ctx context.Context) bool {
	if wp.interval <= 0 {
		return ctx.Err() == nil
	}

	wp.mu.Lock()
	now := time.Now()
	start := wp.next
	if start.Before(now) {
		start = now
	}
	wp.next = start.Add(wp.interval)
	wp.mu.Unlock()

	d := time.Until(start)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// KeySet is a set of string keys (app ids, review ids) used for
// first-occurrence dedup. It is not safe for concurrent use; every caller
// fills it from a single goroutine.
type KeySet map[string]struct{}

// NewKeySet creates an empty KeySet.
func NewKeySet() KeySet {
	return make(KeySet)
}

// Add returns true if the key was newly added, false if already present.
func (s KeySet) Add(key string) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Contains reports whether key has already been added.
func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Len returns the number of keys in the set.
func (s KeySet) Len() int {
	return len(s)
}
