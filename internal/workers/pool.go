package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs CPU-bound jobs on a fixed set of long-lived goroutines so that
// codec work never exceeds the configured parallelism, regardless of how
// many requests are in flight.
type Pool struct {
	jobs    chan func()
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	size    int
	busy    atomic.Int64
	waiting atomic.Int64
}

// NewPool starts size workers. A size below 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs:   make(chan func()),
		closed: make(chan struct{}),
		size:   size,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.busy.Add(1)
			job()
			p.busy.Add(-1)
		case <-p.closed:
			return
		}
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Busy returns the number of workers currently executing a job.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Waiting returns the number of callers blocked waiting for a free worker.
func (p *Pool) Waiting() int {
	return int(p.waiting.Load())
}

// Close stops accepting work and waits for running jobs to finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on the pool and returns its result.
//
// If ctx is done before a worker picks the job up, fn never runs. If ctx is
// done while fn is running, Run returns ctx.Err() immediately; fn still runs
// to completion on its worker and its result is discarded.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	select {
	case <-p.closed:
		return zero, ErrPoolClosed
	default:
	}

	// Buffered so an abandoned job never blocks its worker
	done := make(chan result[T], 1)
	job := func() {
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}

	p.waiting.Add(1)
	select {
	case p.jobs <- job:
		p.waiting.Add(-1)
	case <-ctx.Done():
		p.waiting.Add(-1)
		return zero, ctx.Err()
	case <-p.closed:
		p.waiting.Add(-1)
		return zero, ErrPoolClosed
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
