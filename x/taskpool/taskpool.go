// Package taskpool is a fixed-size task arena: a set number of workers drain a
// bounded backlog, and submissions beyond the backlog are rejected rather
// than queued.
package taskpool

import (
	"context"
	"sync"
	"sync/atomic"

	"presenter-fw/errcode"
)

// Task runs on a pool worker until it returns or ctx is cancelled.
type Task func(ctx context.Context)

type Pool struct {
	workers int
	queue   chan Task
	wg      sync.WaitGroup

	started  atomic.Bool
	running  atomic.Int32
	rejected atomic.Uint32
}

// New sizes the arena. workers <= 0 is coerced to 1, backlog < 0 to 0.
// With backlog 0 a submission succeeds only while a worker is idle.
func New(workers, backlog int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	return &Pool{
		workers: workers,
		queue:   make(chan Task, backlog),
	}
}

// Start launches the workers. They exit when ctx is cancelled; a task that is
// still queued at that point is discarded.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-p.queue:
					p.running.Add(1)
					t(ctx)
					p.running.Add(-1)
				}
			}
		}()
	}
}

// TrySubmit hands t to the arena without blocking. It returns errcode.Busy
// when every worker is occupied and the backlog is full.
func (p *Pool) TrySubmit(t Task) error {
	select {
	case p.queue <- t:
		return nil
	default:
		p.rejected.Add(1)
		return errcode.Busy
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Running is the number of tasks currently executing.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Queued is the number of tasks waiting in the backlog.
func (p *Pool) Queued() int { return len(p.queue) }

// Rejected counts TrySubmit calls that were refused.
func (p *Pool) Rejected() uint32 { return p.rejected.Load() }
