// Package pool implements the worker pool executing subscriber callbacks.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/parallel"
)

const pollInterval = 10 * time.Microsecond

// Task is one unit of dispatch work.
type Task func()

// Config stores pool configuration.
type Config struct {
	// NumOfWorkers is the number of workers executing tasks. Defaults to the
	// hardware concurrency.
	NumOfWorkers uint64
}

// New creates new pool.
func New(config Config) *Pool {
	if config.NumOfWorkers == 0 {
		config.NumOfWorkers = uint64(runtime.NumCPU())
	}

	workers := make([]*worker, config.NumOfWorkers)
	for i := range workers {
		workers[i] = &worker{}
	}

	return &Pool{
		workers: workers,
		next:    lo.ToPtr[uint64](0),
		pending: lo.ToPtr[uint64](0),
	}
}

// Pool distributes tasks over per-worker queues. Idle workers steal from
// their siblings, so one slow callback does not back up the others.
type Pool struct {
	workers []*worker
	next    *uint64
	pending *uint64

	mu     sync.RWMutex
	closed atomic.Bool
}

// Submit enqueues one task. It never blocks on task execution. It reports
// false once the pool has been drained; the caller then owns whatever
// cleanup the task would have performed.
func (p *Pool) Submit(t Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed.Load() {
		return false
	}

	atomic.AddUint64(p.pending, 1)
	i := atomic.AddUint64(p.next, 1)
	p.workers[i%uint64(len(p.workers))].push(t)
	return true
}

// Drain rejects new submissions and blocks until every already-enqueued task
// has been executed to completion.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.closed.Store(true)
	p.mu.Unlock()

	for atomic.LoadUint64(p.pending) > 0 {
		time.Sleep(pollInterval)
	}
}

// Run runs the workers. They keep executing until the pool is drained, so a
// drain started before ctx is cancelled always completes.
func (p *Pool) Run(ctx context.Context) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range p.workers {
			spawn(fmt.Sprintf("worker-%02d", i), parallel.Continue, func(ctx context.Context) error {
				return p.runWorker(ctx, i)
			})
		}
		return nil
	})
}

func (p *Pool) runWorker(ctx context.Context, index int) error {
	for {
		t := p.workers[index].pop()
		for k := 1; t == nil && k < len(p.workers); k++ {
			t = p.workers[(index+k)%len(p.workers)].pop()
		}

		if t == nil {
			if p.closed.Load() && atomic.LoadUint64(p.pending) == 0 {
				return errors.WithStack(ctx.Err())
			}
			time.Sleep(pollInterval)
			continue
		}

		t()
		// Decremented after execution so a drain in progress waits for the
		// task, not only for the queue to empty.
		atomic.AddUint64(p.pending, ^uint64(0))
	}
}

type worker struct {
	mu    sync.Mutex
	tasks []Task
}

func (w *worker) push(t Task) {
	w.mu.Lock()
	w.tasks = append(w.tasks, t)
	w.mu.Unlock()
}

func (w *worker) pop() Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.tasks) == 0 {
		return nil
	}
	t := w.tasks[0]
	w.tasks[0] = nil
	w.tasks = w.tasks[1:]
	return t
}
