// Package worker provides a background task pool using goroutines.
//
// Go Pattern: A buffered channel is the job queue and N goroutines range
// over it. HTTP handlers never block on a full queue; Submit fails fast
// and the caller decides what that means for its own state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full; try again later")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool is stopped")

// Task is a unit of work. Run receives the pool's context, which is
// cancelled on Stop.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool manages a fixed set of worker goroutines.
type Pool struct {
	tasks   chan Task
	workers int
	log     *zap.Logger

	// mu guards stopped and the close of tasks against concurrent Submit.
	mu      sync.RWMutex
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, log *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.log.Info("🚀 Starting background workers", zap.Int("workers", p.workers), zap.Int("queue", cap(p.tasks)))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop cancels running tasks, drops queued ones and waits for workers.
// Safe to call more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.log.Info("⏹️  Stopping workers...")
	p.cancel()
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("✅ All workers stopped")
}

// Submit queues a task without blocking.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("task %q has no Run func", task.Name)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	// Go Pattern: `select` with `default` makes the send non-blocking.
	select {
	case p.tasks <- task:
		p.log.Debug("📥 Task queued", zap.String("task", task.Name), zap.Int("queued", len(p.tasks)))
		return nil
	default:
		p.log.Warn("⚠️  Task queue full", zap.String("task", task.Name))
		return ErrQueueFull
	}
}

// QueueSize returns the number of queued tasks.
func (p *Pool) QueueSize() int {
	return len(p.tasks)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		select {
		case <-p.ctx.Done():
			p.log.Debug("👷 Dropping task on shutdown", zap.Int("worker", id), zap.String("task", task.Name))
			continue
		default:
		}
		p.run(id, task)
	}
}

// run executes one task. A panicking task must not take the worker down.
func (p *Pool) run(id int, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("❌ Task panicked", zap.Int("worker", id), zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()

	task.Run(p.ctx)
	p.log.Debug("✅ Task done", zap.Int("worker", id), zap.String("task", task.Name), zap.Duration("duration", time.Since(start)))
}
