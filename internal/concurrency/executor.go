// File: internal/concurrency/executor.go
// Package concurrency implements the bounded task executor used by connection servers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor runs submitted tasks on a fixed set of worker goroutines, taking them
// from a single FIFO queue. Submission never blocks; tasks wait in the queue until
// a worker is free. Close stops intake and lets the workers drain what is queued.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a fixed pool of worker goroutines.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue // of TaskFunc
	closed  bool
	wg      sync.WaitGroup

	numWorkers int

	// statistics
	active         atomic.Int64
	peakActive     atomic.Int64
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

// NewExecutor creates an Executor with numWorkers workers.
// If numWorkers <= 0, defaults to runtime.NumCPU().
func NewExecutor(numWorkers int) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		pending:    queue.New(),
		numWorkers: numWorkers,
	}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker()
	}
	return e
}

// Submit enqueues a task, returning ErrExecutorClosed once Close was called.
func (e *Executor) Submit(task func()) error {
	if task == nil {
		return ErrNilTask
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.pending.Add(TaskFunc(task))
	e.totalTasks.Add(1)
	e.mu.Unlock()
	e.cond.Signal()
	return nil
}

// NumWorkers returns the number of worker goroutines.
func (e *Executor) NumWorkers() int {
	return e.numWorkers
}

// Active returns the number of tasks executing right now.
func (e *Executor) Active() int {
	return int(e.active.Load())
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Length()
}

// Close stops intake, waits for queued and running tasks to finish and for
// all workers to exit. Subsequent calls are no-ops.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"active_tasks":    e.active.Load(),
		"peak_active":     e.peakActive.Load(),
		"panics":          e.panics.Load(),
		"num_workers":     int64(e.numWorkers),
	}
}

// worker takes tasks in FIFO order until the executor is closed and drained.
func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for e.pending.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.pending.Length() == 0 {
			e.mu.Unlock()
			return
		}
		task := e.pending.Remove().(TaskFunc)
		e.mu.Unlock()
		e.execute(task)
	}
}

// execute runs the task and updates statistics, recovering from panics.
func (e *Executor) execute(task TaskFunc) {
	n := e.active.Add(1)
	for {
		peak := e.peakActive.Load()
		if n <= peak || e.peakActive.CompareAndSwap(peak, n) {
			break
		}
	}
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
		}
		e.active.Add(-1)
		e.completedTasks.Add(1)
	}()
	task()
}
