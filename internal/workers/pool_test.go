package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRun(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	got, err := Run(context.Background(), p, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got != 42 {
		t.Errorf("Run = %d, want 42", got)
	}

	wantErr := errors.New("encode failed")
	_, err = Run(context.Background(), p, func() (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}

func TestPoolBoundsParallelism(t *testing.T) {
	const size = 3
	p := NewPool(size)
	defer p.Close()

	var running, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Run(context.Background(), p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > size {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), size)
	}
}

func TestPoolRunCancelledWhileQueued(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = Run(context.Background(), p, func() (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	_, err := Run(ctx, p, func() (int, error) {
		ran.Store(true)
		return 1, nil
	})
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
	if ran.Load() {
		t.Error("job should not run after its caller gave up while queued")
	}
}

func TestPoolRunCancelledWhileRunning(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := Run(ctx, p, func() (int, error) {
			cancel()
			<-release
			return 1, nil
		})
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	close(release)
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(1)
	p.Close()
	p.Close() // idempotent

	_, err := Run(context.Background(), p, func() (int, error) { return 1, nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Run after Close = %v, want ErrPoolClosed", err)
	}
}

func TestNewPoolMinimumSize(t *testing.T) {
	p := NewPool(0)
	defer p.Close()

	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1", p.Size())
	}
}
