package worker

import (
	"context"
	"sync"
)

// Job is one unit of work run by a Pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a Job produces
type Result interface {
	GetError() error
}

type queued struct {
	seq int
	job Job
}

type finished struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers. Wait returns results in
// submission order, so callers never need to re-sort them. A job that never
// ran because the pool was cancelled leaves a nil slot.
type Pool struct {
	workers int
	jobs    chan queued
	done    chan finished

	mu      sync.Mutex
	slots   []Result
	next    int
	wg      sync.WaitGroup
	drained chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs see ctx. Cancelling ctx
// stops the pool like Shutdown.
func NewPoolWithContext(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers: workers,
		jobs:    make(chan queued, workers*2),
		done:    make(chan finished, workers*2),
		drained: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers and the result drain
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}

	go func() {
		defer close(p.drained)
		for f := range p.done {
			p.mu.Lock()
			p.slots[f.seq] = f.result
			p.mu.Unlock()
		}
	}()
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobs:
			if !ok {
				return
			}
			result := q.job.Execute(p.ctx)
			select {
			case p.done <- finished{seq: q.seq, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false without blocking once the pool has
// been cancelled.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	seq := p.next
	p.next++
	p.slots = append(p.slots, nil)
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- queued{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns one slot per
// submitted job in submission order
func (p *Pool) Wait() []Result {
	close(p.jobs)

	p.wg.Wait()
	p.closeDone()
	<-p.drained

	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots
}

// Shutdown cancels running jobs and stops the workers
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeDone()
}

func (p *Pool) closeDone() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
