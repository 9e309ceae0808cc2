package memory

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	"bandwidth-proxy/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

// newTestMonitor builds a monitor with a fixed limit whose samples come from alloc.
func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = limit
	m := NewMonitor(cfg, testLogger())
	m.readStats = func(s *runtime.MemStats) {
		s.Alloc = *alloc
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %v should be below CriticalWaterMark %v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval <= 0 {
		t.Errorf("CheckInterval should be positive, got %v", cfg.CheckInterval)
	}
}

func TestMonitorPauseAndResume(t *testing.T) {
	alloc := uint64(100)
	m := newTestMonitor(1000, &alloc)

	m.checkMemory()
	if m.IsPaused() {
		t.Fatal("10% usage should not pause")
	}

	alloc = 900
	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("90% usage should pause")
	}

	// Between watermarks: stays paused
	alloc = 800
	m.checkMemory()
	if !m.IsPaused() {
		t.Fatal("80% usage should keep the monitor paused")
	}

	alloc = 500
	m.checkMemory()
	if m.IsPaused() {
		t.Fatal("50% usage should resume")
	}

	current, limit, usage := m.GetStats()
	if current != 500 || limit != 1000 || usage != 0.5 {
		t.Errorf("GetStats = (%d, %d, %v), want (500, 1000, 0.5)", current, limit, usage)
	}
}

func TestMonitorWaitNotPaused(t *testing.T) {
	alloc := uint64(0)
	m := newTestMonitor(1000, &alloc)

	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait on idle monitor = %v, want nil", err)
	}

	var nilMonitor *Monitor
	if err := nilMonitor.Wait(context.Background()); err != nil {
		t.Errorf("Wait on nil monitor = %v, want nil", err)
	}
}

func TestMonitorWaitReleasedOnRecovery(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(1000, &alloc)
	m.checkMemory()

	done := make(chan error, 1)
	go func() {
		done <- m.Wait(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 100
	m.checkMemory()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait = %v, want nil after recovery", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait was not released after recovery")
	}
}

func TestMonitorWaitContextCancelled(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(1000, &alloc)
	m.checkMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestMonitorWaitStopped(t *testing.T) {
	alloc := uint64(950)
	m := newTestMonitor(1000, &alloc)
	m.checkMemory()
	m.Stop()
	m.Stop() // idempotent

	if err := m.Wait(context.Background()); !errors.Is(err, ErrMonitorStopped) {
		t.Errorf("Wait = %v, want ErrMonitorStopped", err)
	}
}

func TestMonitorStartStopWithLimit(_ *testing.T) {
	alloc := uint64(0)
	m := newTestMonitor(1<<40, &alloc)
	m.config.CheckInterval = 5 * time.Millisecond
	m.Start()
	time.Sleep(20 * time.Millisecond)
	m.Stop()
}
