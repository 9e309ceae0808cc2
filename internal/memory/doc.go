// Package memory controls the Go runtime memory limit and applies
// backpressure to transcoding when the heap nears it.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//   - GOMEMLIMIT: Standard Go variable. If set, takes precedence.
//   - MEMORY_LIMIT: Container memory limit, typically from the Kubernetes
//     Downward API. Plain bytes ("536870912") or sizes ("512MiB").
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT given to the Go heap
//     (default 0.85). libvips allocates outside the Go heap, so leave room.
//
// # Backpressure
//
// A [Monitor] samples heap allocation every CheckInterval. Above
// CriticalWaterMark it pauses: [Monitor.Wait] blocks new transcodes and a GC
// is forced. Once usage drops below HighWaterMark all waiters are released.
// Requests already decoding are never interrupted.
//
//	mon := memory.NewMonitor(memory.DefaultConfig(), logger)
//	mon.Start()
//	defer mon.Stop()
//
//	if err := mon.Wait(ctx); err != nil {
//	    return err
//	}
package memory
