// Package worker runs queued pipeline jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is one queued unit of work. Execute receives the pool's context and
// handles its own error reporting; the pool only schedules.
type Task interface {
	Execute(ctx context.Context)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context)

func (f TaskFunc) Execute(ctx context.Context) { f(ctx) }

// Pool is a fixed-size worker pool with a buffered queue. Submit rejects
// work when the queue is full instead of blocking request handlers.
type Pool struct {
	workers int
	queue   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

// NewPool creates a pool with the given number of workers and a queue of
// queueSize pending tasks.
func NewPool(workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.queue:
			p.log.Debug("task started", zap.Int("worker", id))
			task.Execute(p.ctx)
			p.log.Debug("task finished", zap.Int("worker", id))
		}
	}
}

// Submit queues a task. Returns false when the pool is stopping or the
// queue is full.
func (p *Pool) Submit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting work, cancels the running tasks' context and
// waits for the workers to exit. The queue channel is never closed: Submit
// may race with Shutdown, and a send on a closed channel would panic, so
// workers drain via context cancellation alone.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
