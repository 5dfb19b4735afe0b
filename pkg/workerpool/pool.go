// Package workerpool runs background tasks on a fixed set of goroutines
// with a bounded queue.
//
//	pool := workerpool.New("events", 4, 256)
//	defer pool.Shutdown(ctx)
//
//	if err := pool.Submit(task); errors.Is(err, workerpool.ErrPoolFull) {
//	    // shed the task
//	}
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/freshbulk/storefront/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

type Pool struct {
	name    string
	tasks   chan func()
	wg      sync.WaitGroup
	closing chan struct{}
	once    sync.Once

	// sendMu lets Shutdown close tasks only once no sender is mid-send.
	sendMu sync.RWMutex
	closed bool

	panics atomic.Int64
}

// New starts workers goroutines draining a queue of the given depth.
// Non-positive values fall back to one worker and a queue twice the worker
// count.
func New(name string, workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}

	p := &Pool{
		name:    name,
		tasks:   make(chan func(), queue),
		closing: make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.closing:
		return ErrPoolClosed
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until task is queued, the pool closes or ctx ends.
func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Pending is the number of queued tasks not yet picked up.
func (p *Pool) Pending() int { return len(p.tasks) }

// Panics counts tasks that panicked.
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Shutdown stops intake and waits for queued tasks to finish or ctx to
// end. Calling it again is a no-op.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		close(p.closing)
		p.sendMu.Lock()
		p.closed = true
		close(p.tasks)
		p.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workerpool %s: shutdown: %w", p.name, ctx.Err())
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			p.panics.Add(1)
			logger.Error("workerpool: task panicked",
				"pool", p.name,
				"error", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
