// Package workpool provides the bounded worker-goroutine pool that executes
// blocking lookups for the Loom daemon. Work is submitted as plain
// functions; a fixed set of workers drains a bounded queue, so the number
// of concurrently blocking operations has a hard upper bound.
package workpool

import (
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/lc/loom/internal/log"
	"github.com/lc/loom/pkg/resolve"
)

// ErrClosed is returned when submitting work to a closed pool.
var ErrClosed = errors.New("pool closed")

var _ resolve.Pool = (*Pool)(nil)

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers int // configured worker count
	Active  int // tasks currently executing
	Queued  int // tasks waiting for a worker
}

// Pool is a fixed-size worker-goroutine pool with a bounded task queue.
// Submission is safe for concurrent use; the pool never interrupts a
// running task.
type Pool struct {
	tasks   chan func()
	workers int
	active  atomic.Int64

	mu     sync.RWMutex // guards closed against concurrent Submit/Close
	closed bool
	wg     sync.WaitGroup
}

// New creates a pool with the given number of workers and queue capacity,
// and starts the workers immediately.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		tasks:   make(chan func(), queueSize),
		workers: workers,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Debugf("workpool: started %d workers (queue %d)", workers, queueSize)
	return p
}

// Submit queues fn for execution on a worker goroutine. It blocks while the
// queue is full and returns ErrClosed once the pool has been closed.
func (p *Pool) Submit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	p.tasks <- fn
	return nil
}

// Close stops accepting work, drains queued tasks, and waits for all
// workers to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	log.Debug("workpool: stopped")
}

// Stats returns a snapshot of current pool activity.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.workers,
		Active:  int(p.active.Load()),
		Queued:  len(p.tasks),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for fn := range p.tasks {
		p.active.Inc()
		p.runTask(fn)
		p.active.Dec()
	}
}

// runTask executes fn, recovering a panic so one bad task cannot take a
// worker down with it.
func (p *Pool) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("workpool: task panicked: %v", r)
		}
	}()
	fn()
}
