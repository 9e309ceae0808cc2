package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Acquire once the pool has been closed.
var ErrPoolClosed = errors.New("fetch permit pool closed")

// PermitPool is a counting semaphore bounding concurrent upstream fetches.
// Waiters block on a channel; nothing spins.
type PermitPool struct {
	slots     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	waiting   atomic.Int64
}

// NewPermitPool creates a pool with the given capacity (minimum 1).
func NewPermitPool(capacity int) *PermitPool {
	if capacity < 1 {
		capacity = 1
	}
	return &PermitPool{
		slots:  make(chan struct{}, capacity),
		closed: make(chan struct{}),
	}
}

// Acquire blocks until a permit is free, ctx is done, or the pool is closed.
// The returned release func is safe to call more than once; only the first
// call returns the permit.
func (p *PermitPool) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Closed() {
		return nil, ErrPoolClosed
	}

	p.waiting.Add(1)
	defer p.waiting.Add(-1)

	select {
	case p.slots <- struct{}{}:
		if p.Closed() {
			<-p.slots
			return nil, ErrPoolClosed
		}
		var once sync.Once
		return func() {
			once.Do(func() { <-p.slots })
		}, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops new acquisitions and wakes every waiter with ErrPoolClosed.
// Permits already held stay valid until released.
func (p *PermitPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// Closed reports whether Close has been called.
func (p *PermitPool) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Capacity returns the maximum number of concurrent permits.
func (p *PermitPool) Capacity() int {
	return cap(p.slots)
}

// InUse returns the number of permits currently held.
func (p *PermitPool) InUse() int {
	return len(p.slots)
}

// Waiting returns the number of callers blocked in Acquire.
func (p *PermitPool) Waiting() int {
	return int(p.waiting.Load())
}
